//go:build windows

package config

// defaultPipeName имя named pipe для gRPC на Windows
func defaultPipeName() string {
	return `\\.\pipe\kikitori`
}
