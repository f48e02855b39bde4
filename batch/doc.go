// Package batch renders many chains and optionally hands each output to an
// external training command.
package batch
