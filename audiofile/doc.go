// Package audiofile reads and writes integer PCM WAV files and loads
// impulse responses.
package audiofile
