package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("export: %w", IO("shard.connect", "dial failed", stderrors.New("refused")))

	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindIO, KindOf(err))
	assert.Equal(t, "shard.connect: dial failed: refused", stderrors.Unwrap(err).Error())
}

func TestError_MessageFallsBackToKind(t *testing.T) {
	assert.Equal(t, "not_found", (&Error{Kind: KindNotFound}).Error())
	assert.Equal(t, "catalog.cube: not_found", (&Error{Kind: KindNotFound, Op: "catalog.cube"}).Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestParseKind_RoundTrip(t *testing.T) {
	for k := range kindNames {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindUnknown, ParseKind("nonsense"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"already published", AlreadyPublished("/out/cube.nc"), 0},
		{"configuration", Configuration("catalog.open", "bad dsn", nil), 2},
		{"not found", NotFound("catalog.cube", "cube 4", nil), 3},
		{"permission", Permission("export", "no write", nil), 4},
		{"unsupported", UnsupportedType("cube.parse_type", "complex"), 5},
		{"fragmentation", FragmentationTooFine(3), 6},
		{"io", IO("sink.commit", "disk full", nil), 7},
		{"unclassified", stderrors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestNew_RebuildsRemoteFailure(t *testing.T) {
	err := New(ParseKind("permission"), "export", "rank 0 failed")
	assert.ErrorIs(t, err, ErrPermission)
	assert.Contains(t, FragmentationTooFine(2).Error(), "2 fragments")
}
