package common

import "errors"

// ErrArithmetic indicates a weight computation under- or overflowed, or a
// field division by zero was attempted. The operation produced no result.
var ErrArithmetic = errors.New("arithmetic error")

// ErrLengthMismatch indicates two inputs that must correspond positionally
// have different lengths.
var ErrLengthMismatch = errors.New("length mismatch")

// ErrVerification indicates a transcript, an aggregate or a ciphertext failed
// its cryptographic consistency checks.
var ErrVerification = errors.New("verification failed")

// ErrDecryption indicates the symmetric layer rejected a ciphertext, usually
// because the shared secret used to derive the key is wrong.
var ErrDecryption = errors.New("decryption failed")
