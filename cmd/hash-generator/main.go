// Command hash-generator produces a bcrypt hash of an operator key, suitable
// for the AUTH_OPERATOR_KEY_HASH configuration value.
//
// Usage:
//
//	hash-generator <operator-key>
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hash-generator <operator-key>")
		os.Exit(2)
	}

	key := os.Args[1]
	if len(key) < 12 {
		fmt.Fprintln(os.Stderr, "hash-generator: operator key must be at least 12 characters")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash-generator: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(hash))
}
