// Package language normalizes the language hints handed to ASR backends.
//
// mpv reports track languages as ISO 639-2 tags ("eng", "ger") while the
// backends expect ISO 639-1 ("en", "de"); this package maps between them.
package language
