// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"

	"github.com/spf13/afero"
)

// FaultFs wraps an afero.Fs and fails selected operations. a nil hook, or a
// hook returning nil, passes the call through to the wrapped filesystem.
type FaultFs struct {
	afero.Fs

	StatErr  func(name string) error
	MkdirErr func(name string) error
	OpenErr  func(name string, flag int) error
}

// NewFaultFs wraps fsys with no faults configured
func NewFaultFs(fsys afero.Fs) *FaultFs {
	return &FaultFs{Fs: fsys}
}

func (f *FaultFs) Stat(name string) (os.FileInfo, error) {
	if f.StatErr != nil {
		if err := f.StatErr(name); err != nil {
			return nil, &os.PathError{Op: "stat", Path: name, Err: err}
		}
	}
	return f.Fs.Stat(name)
}

func (f *FaultFs) Mkdir(name string, perm os.FileMode) error {
	if f.MkdirErr != nil {
		if err := f.MkdirErr(name); err != nil {
			return &os.PathError{Op: "mkdir", Path: name, Err: err}
		}
	}
	return f.Fs.Mkdir(name, perm)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.OpenErr != nil {
		if err := f.OpenErr(name, flag); err != nil {
			return nil, &os.PathError{Op: "open", Path: name, Err: err}
		}
	}
	return f.Fs.OpenFile(name, flag, perm)
}
