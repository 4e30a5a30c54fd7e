package source

import "errors"

// ErrHookUnavailable indicates no OS input hook backend exists on this
// platform; callers fall back to the synthetic sources.
var ErrHookUnavailable = errors.New("os input hook unavailable on this platform")

// ErrInputPermission indicates the host denied the input monitoring
// permission the keyboard hook requires.
var ErrInputPermission = errors.New("input monitoring permission required for event capture")
