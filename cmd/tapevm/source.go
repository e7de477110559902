package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// sourceEnd separates the program from its input when both arrive on stdin.
const sourceEnd = '|'

// readSource returns the program text and the reader the program's own input
// comes from. With a file argument the file is the source (up to any '|') and
// stdin is the input. Without one, stdin carries both: the source up to the
// first '|', then the input.
func readSource(args []string, stdin io.Reader) ([]byte, io.Reader, error) {
	if len(args) > 0 {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open file '%s': %w", args[0], err)
		}
		if i := bytes.IndexByte(src, sourceEnd); i >= 0 {
			src = src[:i]
		}
		return src, stdin, nil
	}

	br := bufio.NewReader(stdin)
	src, err := br.ReadBytes(sourceEnd)
	if err == io.EOF {
		return src, br, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return src[:len(src)-1], br, nil
}
