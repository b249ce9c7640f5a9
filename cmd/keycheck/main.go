package main

import (
	"fmt"
	"os"

	"github.com/user/toyrsa/internal/rsa"
	"github.com/user/toyrsa/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <keyfile.json>\n", os.Args[0])
		os.Exit(2)
	}

	ok, err := check(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func check(path string) (bool, error) {
	key, err := storage.ReadKeyFile(path)
	if err != nil {
		return false, err
	}
	kp := key.Keypair

	fmt.Printf("Key file: %s\n", path)
	fmt.Printf("Key ID: %s\n", key.ID)
	fmt.Printf("Public exponent: %d\n", kp.Public)
	fmt.Printf("Modulus: %d\n", kp.Modulus)

	fmt.Println("\nValidating mathematical properties...")

	ok := true
	if err := kp.Validate(); err != nil {
		fmt.Printf("✗ %v\n", err)
		ok = false
	} else {
		fmt.Println("✓ p and q are distinct 8-bit primes")
		fmt.Println("✓ n = p × q")
		fmt.Println("✓ e × d ≡ 1 (mod φ(n))")
	}

	if fp := storage.Fingerprint(&kp); fp != key.Fingerprint {
		fmt.Printf("✗ fingerprint %s does not match recorded %s\n", fp, key.Fingerprint)
		ok = false
	}

	// an invalid key may have a zero modulus
	if ok {
		ok = roundTrip(kp)
	}

	if ok {
		fmt.Println("\nKey validation complete!")
	} else {
		fmt.Println("\nKey validation failed")
	}
	return ok, nil
}

func roundTrip(kp rsa.Keypair) bool {
	fmt.Println("\nTesting encryption/decryption...")
	message := []byte("test")

	ciphertext := rsa.EncryptMessage(message, kp.Public, kp.Modulus)
	plaintext := rsa.DecryptMessage(ciphertext, kp.Private, kp.Modulus)

	if string(plaintext) != string(message) {
		fmt.Printf("✗ Decryption mismatch: got %q\n", plaintext)
		return false
	}
	fmt.Printf("✓ Successfully encrypted and decrypted: %q\n", plaintext)
	return true
}
