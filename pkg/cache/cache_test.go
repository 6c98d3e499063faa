package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petqc/internal/errs"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func fingerprint(stage string, config []byte, inputs ...string) (string, error) {
	f := NewFingerprinter(stage).Bytes(config)
	for _, in := range inputs {
		if err := f.File(in); err != nil {
			return "", err
		}
	}
	return f.Sum(), nil
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "1,2,3")

	fp1, err := fingerprint("tag", []byte("cfg"), a)
	require.NoError(t, err)
	fp2, err := fingerprint("tag", []byte("cfg"), a)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2, "deterministic")
	assert.Len(t, fp1, 64)

	other, _ := fingerprint("describe", []byte("cfg"), a)
	assert.NotEqual(t, fp1, other, "stage name participates")
	other, _ = fingerprint("tag", []byte("cfg2"), a)
	assert.NotEqual(t, fp1, other, "config participates")

	require.NoError(t, os.WriteFile(a, []byte("1,2,4"), 0644))
	other, _ = fingerprint("tag", []byte("cfg"), a)
	assert.NotEqual(t, fp1, other, "input content participates")

	_, err = fingerprint("tag", nil, filepath.Join(dir, "absent.csv"))
	var missing *errs.MissingInputError
	assert.True(t, errors.As(err, &missing))
}

func TestFingerprintPartsDoNotRunTogether(t *testing.T) {
	a := NewFingerprinter("s").Part("ab").Part("c").Sum()
	b := NewFingerprinter("s").Part("a").Part("bc").Sum()
	assert.NotEqual(t, a, b)
}

func TestStoreCommitAndLookup(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Lookup("nothing")
	require.NoError(t, err)
	assert.False(t, ok)

	artifact := writeFile(t, t.TempDir(), "out.csv", "a,b\n1,2\n")
	require.NoError(t, s.Commit("fp", "describe", artifact))

	entry, ok, err := s.Lookup("fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifact, entry.Path)
	assert.Equal(t, "describe", entry.Stage)

	require.NoError(t, os.WriteFile(artifact, []byte("a,b\n9,9\n"), 0644))
	_, ok, err = s.Lookup("fp")
	require.NoError(t, err)
	assert.False(t, ok, "modified artifact is stale")

	require.NoError(t, s.Commit("fp", "describe", artifact))
	require.NoError(t, os.Remove(artifact))
	_, ok, err = s.Lookup("fp")
	require.NoError(t, err)
	assert.False(t, ok, "deleted artifact is stale")
}

func TestStoreInvalidate(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	artifact := writeFile(t, t.TempDir(), "out.csv", "x")
	require.NoError(t, s.Commit("fp", "tag", artifact))
	require.NoError(t, s.Invalidate("fp"))

	_, ok, err := s.Lookup("fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorePersists(t *testing.T) {
	dir := t.TempDir()
	artifact := writeFile(t, dir, "out.csv", "x")

	s, err := Open(Config{Dir: filepath.Join(dir, "cache")})
	require.NoError(t, err)
	require.NoError(t, s.Commit("fp", "tag", artifact))
	require.NoError(t, s.Close())

	s, err = Open(Config{Dir: filepath.Join(dir, "cache")})
	require.NoError(t, err)
	defer s.Close()
	_, ok, err := s.Lookup("fp")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Open(Config{})
	assert.Error(t, err)
}
