package lib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/ssh/terminal"
)

// Prompt asks on stderr and reads a line from stdin. Sensitive input is read
// without echo.
func Prompt(prompt string, sensitive bool) (string, error) {
	return PromptWithOutput(prompt, sensitive, os.Stderr)
}

func PromptWithOutput(prompt string, sensitive bool, output io.Writer) (string, error) {
	fmt.Fprintf(output, "%s: ", prompt)

	if sensitive {
		// ReadPassword swallows the newline
		defer fmt.Fprintln(output)
		input, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(input)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
