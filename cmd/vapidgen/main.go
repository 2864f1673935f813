// Command vapidgen prints a fresh VAPID key pair in .env form.
package main

import (
	"flag"
	"fmt"
	"os"

	"pipeline-hub/internal/push"
)

func main() {
	subject := flag.String("subject", "mailto:admin@example.com", "VAPID subject (mailto: or https: URL)")
	flag.Parse()

	publicKey, privateKey, err := push.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate VAPID keys: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VAPID_SUBJECT=%s\n", *subject)
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
}
