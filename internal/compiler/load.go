package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/load"
)

// Errors returned by LoadDir and LoadFiles, matched with errors.Is.
var (
	ErrLoadFailed  = errors.New("CUE load failed")
	ErrBuildFailed = errors.New("CUE build failed")
)

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// LoadDir builds the CUE package in dir.
func LoadDir(ctx *cue.Context, dir string) (cue.Value, error) {
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("%w: no CUE instances loaded", ErrLoadFailed)
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("%w: %v", ErrLoadFailed, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	// Err only reports a bottom root; conflicts in nested fields need Validate.
	if err := value.Validate(); err != nil {
		return cue.Value{}, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	return value, nil
}

// LoadFiles compiles each file on its own and unifies the results in
// order. Unlike LoadDir the files need not share a package clause.
func LoadFiles(ctx *cue.Context, paths []string) (cue.Value, error) {
	if len(paths) == 0 {
		return cue.Value{}, fmt.Errorf("%w: no files given", ErrLoadFailed)
	}

	var value cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, fmt.Errorf("%w: %s: %v", ErrBuildFailed, path, err)
		}
		if i == 0 {
			value = v
			continue
		}
		value = value.Unify(v)
	}

	if err := value.Validate(); err != nil {
		return cue.Value{}, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	return value, nil
}
