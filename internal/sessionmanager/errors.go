package sessionmanager

import "errors"

// ErrAlreadyExists is returned by Create when a live session already
// exists for the requested room id (§4.1: "enforce singleton-per-room").
var ErrAlreadyExists = errors.New("sessionmanager: session already exists for room")

// ErrNotFound is returned by Get/Destroy when no session exists for the
// requested id.
var ErrNotFound = errors.New("sessionmanager: session not found")

// ErrConfigInvalid is returned by Create when agent_config resolution
// does not yield a usable STT/LLM/TTS triple.
var ErrConfigInvalid = errors.New("sessionmanager: agent config did not resolve to a complete STT/LLM/TTS triple")
