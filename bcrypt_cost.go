//go:build !race

package access

const defaultPasswordHashCost = 14

func passwordHashCost() int {
	return defaultPasswordHashCost
}
