package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_Classified(t *testing.T) {
	req := require.New(t)

	req.Equal(KindValidation, KindOf(Validation("empty payload")))
	req.Equal(KindNotFound, KindOf(NotFound("user %d not found", 7)))
	req.Equal(KindForbidden, KindOf(Forbidden("not allowed")))
	req.Equal(KindUpstream, KindOf(Upstream("media upload failed", errors.New("boom"))))
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("send message: %w", NotFound("receiver not found"))
	req.Equal(KindNotFound, KindOf(err))
	req.Equal(http.StatusNotFound, HTTPStatus(err))
}

func TestKindOf_UnclassifiedIsInternal(t *testing.T) {
	req := require.New(t)

	req.Equal(KindInternal, KindOf(errors.New("plain")))
	req.Equal(http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestUserMessage_HidesInternals(t *testing.T) {
	req := require.New(t)

	req.Equal("receiver not found", UserMessage(NotFound("receiver not found")))
	req.Equal("internal server error", UserMessage(Upstream("media upload failed", errors.New("dns"))))
	req.Equal("internal server error", UserMessage(errors.New("pq: connection reset")))
}

func TestHTTPStatus(t *testing.T) {
	req := require.New(t)

	req.Equal(http.StatusBadRequest, HTTPStatus(Validation("bad scope")))
	req.Equal(http.StatusForbidden, HTTPStatus(Forbidden("not allowed")))
	req.Equal(http.StatusBadGateway, HTTPStatus(Upstream("upload", errors.New("x"))))
}
