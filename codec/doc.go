// Package codec seals vault values with AES-256-GCM.
//
// A sealed value is the Base64 (standard alphabet, padded) encoding of a
// 12-byte random nonce followed by the ciphertext and its 16-byte tag.
package codec
