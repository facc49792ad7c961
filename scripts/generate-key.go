// Package main is a development utility for generating the secrets the server
// needs at startup. It prints a fresh ENCRYPTION_KEY (exactly 32 bytes, as
// required by the credential vault cipher) and an SB_JWT_SECRET, ready to paste
// into a local .env file. Do not reuse generated values across environments;
// rotating ENCRYPTION_KEY makes previously stored credentials undecryptable.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func randomString(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func main() {
	// 24 random bytes encode to exactly 32 base64 characters, matching the
	// vault cipher's required key length.
	encryptionKey := randomString(24)
	jwtSecret := randomString(48)

	fmt.Println("==========================================================")
	fmt.Println("Staybase Server Secrets")
	fmt.Println("==========================================================")
	fmt.Printf("\nENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Printf("SB_JWT_SECRET=%s\n", jwtSecret)
	fmt.Println("\n==========================================================")
	fmt.Println("Store these in your secret manager or local .env file.")
	fmt.Println("ENCRYPTION_KEY must stay stable for the life of the vault.")
	fmt.Println("==========================================================")
}
