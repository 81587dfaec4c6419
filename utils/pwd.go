package utils

import (
	"log"

	"golang.org/x/crypto/bcrypt"
)

// GetPwd hashes a device secret.
func GetPwd(pwd string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("generate secret hash error:", err)
	}
	return string(hash)
}

// CheckPwd verifies a device secret against its hash.
func CheckPwd(pwd string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pwd)) == nil
}
