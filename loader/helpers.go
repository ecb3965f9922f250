package loader

import (
	"fmt"
	"io"
)

// LoadFilesAndValidate checks each file and writes a report to w.  It returns
// false if any file failed.
func (l *Loader) LoadFilesAndValidate(w io.Writer, sourceFiles ...string) (success bool) {
	success = true
	for _, f := range sourceFiles {
		res, _ := l.LoadFile(f)
		if res.HasErrors() {
			success = false
			fmt.Fprintf(w, "\nError Validating File %s\n", res.Path)
			for _, err := range res.Errors {
				fmt.Fprintln(w, err)
			}
		} else {
			fmt.Fprintf(w, "File %s - Validated Successfully\n", res.Path)
		}
	}
	return
}
