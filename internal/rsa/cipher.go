package rsa

import "github.com/user/toyrsa/internal/numtheory"

// Encrypt maps one plaintext byte to b^key mod modulus. Either exponent of a
// keypair may be used; the other one reverses it.
func Encrypt(b byte, key, modulus uint32) uint32 {
	return numtheory.ModPow(uint64(b), key, modulus)
}

// Decrypt maps one cipher unit back to a byte, truncating the result of
// c^key mod modulus to its low eight bits.
func Decrypt(c, key, modulus uint32) byte {
	return byte(numtheory.ModPow(uint64(c), key, modulus))
}

// EncryptMessage encrypts every byte of msg independently.
func EncryptMessage(msg []byte, key, modulus uint32) []uint32 {
	out := make([]uint32, len(msg))
	for i, b := range msg {
		out[i] = Encrypt(b, key, modulus)
	}
	return out
}

// DecryptMessage decrypts every unit of units independently.
func DecryptMessage(units []uint32, key, modulus uint32) []byte {
	out := make([]byte, len(units))
	for i, c := range units {
		out[i] = Decrypt(c, key, modulus)
	}
	return out
}
