package model

import "time"

// Account is an identity that can call the registry.  The address plays the
// role of a wallet address: it is the value stored as a hackathon host and
// as a participant.
//
// Fields:
//  Address      – "0x" followed by 40 lowercase hex characters.
//  PasswordHash – bcrypt hash of the account password.
//  CreatedAt    – registration timestamp.
type Account struct {
    Address      string    // accounts.address
    PasswordHash string    // accounts.password_hash
    CreatedAt    time.Time // accounts.created_at
}
