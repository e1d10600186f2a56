package fs

import (
	stderrs "errors"
	iofs "io/fs"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
)

// ErrNoSourceDir is the error returned by GuessSourceDir when it finds no CircuitPython code.
var ErrNoSourceDir = errors.New("no CircuitPython source directory found")

var codeFileRegex = regexp.MustCompile(`^(code|main)\.(py|txt)$`)

var errFound = errors.New("found")

// GuessSourceDir finds the directory holding a user's CircuitPython code,
// searching start and its descendants.
// The result is the directory of the first code.py, code.txt, main.py, or main.txt found.
// If there is none, the error is ErrNoSourceDir.
func GuessSourceDir(start string) (string, error) {
	var found string
	err := Walk(start, func(path string, d iofs.DirEntry) error {
		if d.IsDir() || !codeFileRegex.MatchString(d.Name()) {
			return nil
		}
		found = filepath.Dir(path)
		return errFound
	})
	if stderrs.Is(err, errFound) {
		return found, nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "searching %s for source code", start)
	}
	return "", errors.Wrapf(ErrNoSourceDir, "in %s", start)
}
