package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &prompter{in: s, out: out}
}

// ask prints label and returns the trimmed answer. EOF yields io.EOF.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// askDefault keeps def when the answer is empty.
func (p *prompter) askDefault(label, def string) (string, error) {
	ans, err := p.ask(fmt.Sprintf("%s [%s]: ", label, def))
	if err != nil || ans == "" {
		return def, err
	}
	return ans, nil
}
