// Package utils provides shared utility functions and constants
package utils

// ContextKeyCreds is the key used to store credentials in the echo context
const ContextKeyCreds = "creds"

// ContextKeyService is the key used to store the service identity in the echo context
const ContextKeyService = "service"
