package storyworld

import (
	"fmt"
	"strings"
)

const (
	codeDuplicateID          = "duplicate_id"
	codeMissingID            = "missing_id"
	codeDanglingConsequence  = "dangling_consequence"
	codeDanglingSpool        = "dangling_spool"
	codeDanglingSpoolMember  = "dangling_spool_member"
	codeDanglingStart        = "dangling_start"
	codeUnknownCharacter     = "unknown_character"
	codeUndeclaredProperty   = "undeclared_property"
	codeKeyringDepth         = "keyring_depth"
	codeTypeMismatch         = "type_mismatch"
	codeUnknownVariant       = "unknown_variant"
	codeMalformed            = "malformed"
	codeNoReactions          = "no_reactions"
	codeInitialOutOfBounds   = "initial_out_of_bounds"
	codeInvalidTurnWindow    = "invalid_turn_window"
	codeNoSpools             = "no_spools"
	codeEmptySpool           = "empty_spool"
	codeNoActiveSpool        = "no_active_spool"
	codeUnreachableByLinking = "unlinked_encounter"
)

// Problem is one defect found while loading a document.
type Problem struct {
	Path    string
	Code    string
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// DocumentError reports every problem that kept a document from loading.
type DocumentError struct {
	Problems []Problem
}

func (e *DocumentError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "invalid storyworld"
	case 1:
		return "invalid storyworld: " + e.Problems[0].String()
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("invalid storyworld: %d problems: %s", len(e.Problems), strings.Join(parts, "; "))
}
