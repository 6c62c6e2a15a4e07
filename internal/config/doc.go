// Package config loads, normalizes, and validates audio2subs configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and applies the environment overrides exported by the mpv
// launcher script (MPV_SOCKET, AUDIO2SUBS_CHUNK_DURATION,
// AUDIO2SUBS_PERSISTENT_MODE, AUDIO2SUBS_CPU_ONLY). Credentials fall back to
// OPENAI_API_KEY and HF_TOKEN when the file leaves them blank.
package config
