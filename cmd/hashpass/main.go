// Command hashpass prints a bcrypt hash for ADMIN_PASSWORD_HASH.
//
//	hashpass -cost 12 < password.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/workpulse/survey/pkg/utils"
)

func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (0 for the library default)")
	flag.Parse()

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "read password from stdin:", err)
		os.Exit(1)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "empty password")
		os.Exit(1)
	}

	hash, err := utils.HashPassword(password, *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
