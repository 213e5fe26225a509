package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GetGravatarURL returns the Gravatar image for email, falling back to the
// generic silhouette when none is registered. Default size is 200px.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 200
	}
	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}

// AvatarOrGravatar keeps a provider avatar and only derives one for real
// addresses; placeholder addresses of the .local zone get none.
func AvatarOrGravatar(avatarURL, email string) string {
	if avatarURL = strings.TrimSpace(avatarURL); avatarURL != "" {
		return avatarURL
	}
	if email == "" || strings.HasSuffix(strings.ToLower(email), ".local") {
		return ""
	}
	return GetGravatarURL(email, 0)
}
