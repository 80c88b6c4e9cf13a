// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadPassword prompts for a password. On a terminal the input is not
// echoed and the password is asked for twice when confirm is set.
// Otherwise one line is read from stdin, so scripts can pipe a
// password in.
func ReadPassword(streams IO, prompt string, confirm bool) (string, error) {
	if file, ok := streams.Stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		password, err := readHidden(streams, file, prompt)
		if err != nil {
			return "", err
		}
		if confirm {
			again, err := readHidden(streams, file, "Repeat "+strings.ToLower(prompt[:1])+prompt[1:])
			if err != nil {
				return "", err
			}
			if again != password {
				return "", errors.New("passwords do not match")
			}
		}
		if password == "" {
			return "", errors.New("password is empty")
		}
		return password, nil
	}

	line, err := bufio.NewReader(streams.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return password, nil
}

func readHidden(streams IO, file *os.File, prompt string) (string, error) {
	fmt.Fprintf(streams.Stderr, "%s: ", prompt)
	password, err := term.ReadPassword(int(file.Fd()))
	fmt.Fprintln(streams.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
