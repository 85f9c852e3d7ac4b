package storage

import "errors"

var (
	ErrPhraseNotFound = errors.New("phrase not found")
	ErrEmptyPhrase    = errors.New("phrase is empty")
	ErrInvalidSeed    = errors.New("seed phrase yields an empty store name")
	ErrRunNotFound    = errors.New("run not found")
)
