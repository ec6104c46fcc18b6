// Package utils provides small slice and record helpers shared by the
// driver, the record loaders and the CLI.
package utils
