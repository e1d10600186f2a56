package fs

import (
	stderrs "errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/cpytool/testutil"
)

func TestWalk(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "code.py", "")
	testutil.WriteFile(t, root, "lib/b.py", "")
	testutil.WriteFile(t, root, "lib/a.py", "")
	testutil.Mkdir(t, root, "empty")

	var got []string
	err := Walk(root, func(path string, d iofs.DirEntry) error {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel += "/"
		}
		got = append(got, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"./", "code.py", "empty/", "lib/", "lib/a.py", "lib/b.py"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkSkipDir(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "a/x", "")
	testutil.WriteFile(t, root, "b/y", "")

	var got []string
	err := Walk(root, func(path string, d iofs.DirEntry) error {
		if d.IsDir() && d.Name() == "a" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			got = append(got, d.Name())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"y"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := t.TempDir()
	testutil.WriteFile(t, root, "locked/secret", "")
	testutil.WriteFile(t, root, "open/visible", "")
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	var got []string
	err := Walk(root, func(path string, d iofs.DirEntry) error {
		if !d.IsDir() {
			got = append(got, d.Name())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"visible"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkSymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	testutil.WriteFile(t, target, "lib/a.py", "")
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	var got []string
	err := Walk(link, func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			path += "/"
		}
		got = append(got, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{link + "/", filepath.Join(link, "lib") + "/", filepath.Join(link, "lib/a.py")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	err := Walk(filepath.Join(t.TempDir(), "nonexistent"), func(string, iofs.DirEntry) error { return nil })
	if !stderrs.Is(err, iofs.ErrNotExist) {
		t.Errorf("got %v, want a not-exist error", err)
	}
}

func TestWalkAll(t *testing.T) {
	var (
		root1 = t.TempDir()
		root2 = t.TempDir()
	)
	testutil.WriteFile(t, root1, "one.py", "")
	testutil.WriteFile(t, root2, "two.py", "")

	type visit struct{ Root, Name string }
	var got []visit
	err := WalkAll([]string{root1, root2}, func(root, path string, d iofs.DirEntry) error {
		if !d.IsDir() {
			got = append(got, visit{Root: root, Name: d.Name()})
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []visit{{Root: root1, Name: "one.py"}, {Root: root2, Name: "two.py"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
