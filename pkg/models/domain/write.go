package domain

import "fmt"

// WriteMode controls what happens when the destination table already exists.
type WriteMode string

const (
	WriteFail    WriteMode = "fail"
	WriteReplace WriteMode = "replace"
	WriteAppend  WriteMode = "append"
)

func ParseWriteMode(s string) (WriteMode, error) {
	switch m := WriteMode(s); m {
	case WriteFail, WriteReplace, WriteAppend:
		return m, nil
	}
	return "", fmt.Errorf("write mode must be one of fail, replace, append: got %q", s)
}

// OutputMode selects the persistence collaborator.
type OutputMode string

const (
	OutputWarehouse OutputMode = "warehouse"
	OutputCSV       OutputMode = "csv"
)

func ParseOutputMode(s string) (OutputMode, error) {
	switch m := OutputMode(s); m {
	case OutputWarehouse, OutputCSV:
		return m, nil
	}
	return "", fmt.Errorf("output must be one of warehouse, csv: got %q", s)
}
