// Package main generates a random token signing secret for local
// deployments. It prints the value as a PLN_AUTH_JWT_SECRET assignment ready
// to paste into an env file. Use a secret manager in production.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	secret := make([]byte, 48)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Token signing secret generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nPLN_AUTH_JWT_SECRET=%s\n\n", base64.RawURLEncoding.EncodeToString(secret))
	fmt.Println("Restart the server after changing it; issued tokens stop validating.")
}
