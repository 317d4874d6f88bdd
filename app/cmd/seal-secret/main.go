// Command seal-secret encrypts a secret for use as an "enc::" value in the
// environment or the YAML config file.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/joho/godotenv"

	"sysadvisor/app/internal/crypto"
)

func main() {
	check := flag.String("check", "", "Open a sealed value and print it masked")
	flag.Parse()

	_ = godotenv.Load()
	sealer, err := crypto.NewSealer([]byte(os.Getenv("SYSADVISOR_SECRET")))
	if err != nil {
		log.Fatalf("Failed to derive key: %v", err)
	}

	if *check != "" {
		plain, err := sealer.Open(*check)
		if err != nil {
			log.Fatalf("Failed to open value: %v", err)
		}
		fmt.Println(crypto.Mask(plain))
		return
	}

	plain, err := readSecret(os.Stdin, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to read secret: %v", err)
	}
	sealed, err := seal(sealer, plain)
	if err != nil {
		log.Fatalf("Failed to seal: %v", err)
	}
	fmt.Println(sealed)
}

// seal rejects empty input and a missing key instead of passing the value
// through unchanged.
func seal(sealer *crypto.Sealer, plain string) (string, error) {
	if plain == "" {
		return "", errors.New("empty secret")
	}
	if crypto.IsSealed(plain) {
		return "", errors.New("value is already sealed")
	}
	return sealer.Seal(plain)
}

// readSecret prompts without echo on a terminal and reads one line
// otherwise.
func readSecret(in *os.File, prompt io.Writer) (string, error) {
	if term.IsTerminal(in.Fd()) {
		fmt.Fprint(prompt, "Secret: ")
		b, err := term.ReadPassword(in.Fd())
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
