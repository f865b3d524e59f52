package manager

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/internal/media/mediatest"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForm_Defaults(t *testing.T) {
	f := NewForm(schema.Event)

	assert.Equal(t, StateDraft, f.State())
	assert.Empty(t, f.ID())
	assert.Equal(t, float64(0), f.Value("fee"))
	assert.Equal(t, 0, f.Value("maxParticipants"))
	assert.Equal(t, false, f.Value("registrationRequired"))
	assert.Nil(t, f.Value("title"))
	assert.NotContains(t, f.Document(), "title")
}

func TestForm_SetField(t *testing.T) {
	f := NewForm(schema.Event)

	require.NoError(t, f.SetField("fee", " 25.5 "))
	assert.Equal(t, 25.5, f.Value("fee"))

	require.NoError(t, f.SetField("startDate", "2024-10-05T17:00"))
	assert.IsType(t, time.Time{}, f.Value("startDate"))

	err := f.SetField("fee", "ten")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Fee has an invalid value", verr.Fields["fee"])
	assert.Equal(t, 25.5, f.Value("fee"), "a rejected value leaves the old one")
	assert.Contains(t, f.Errors(), "fee")

	require.NoError(t, f.SetField("fee", "30"))
	assert.NotContains(t, f.Errors(), "fee")

	for _, v := range []string{"Inf", "NaN"} {
		err = f.SetField("fee", v)
		require.ErrorAs(t, err, &verr, v)
		assert.Equal(t, "Fee has an invalid value", verr.Fields["fee"])
		assert.Equal(t, float64(30), f.Value("fee"))
	}

	err = f.SetField("nope", "x")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unknown field", verr.Fields["nope"])
}

func TestForm_Validate(t *testing.T) {
	f := NewForm(schema.Event)
	fillEvent(t, f)

	fe := f.Validate()
	assert.Equal(t, FieldErrors{"imageUrl": "Image is required"}, fe)

	f.SetFile(media.File{Name: "cover.jpg", Data: []byte("jpg")})
	assert.Nil(t, f.Validate())
	assert.Empty(t, f.Errors())

	require.NoError(t, f.SetField("maxParticipants", "-3"))
	require.NoError(t, f.SetField("sheet", "not a url"))
	fe = f.Validate()
	assert.Equal(t, "Max Participants must be zero or more", fe["maxParticipants"])
	assert.Equal(t, "Sheet URL must be a valid URL", fe["sheet"])
	assert.Len(t, fe, 2)
}

func TestForm_ValidateOptionalMediaNotRequired(t *testing.T) {
	f := NewForm(schema.Recruitment)
	require.NoError(t, f.SetField("title", "ACM"))
	require.NoError(t, f.SetField("url", "https://acm.example.com"))
	assert.Nil(t, f.Validate())
}

func TestForm_Reset(t *testing.T) {
	f := NewForm(schema.Slide)
	require.NoError(t, f.SetField("title", "Welcome"))
	f.SetFile(media.File{Name: "a.png", Data: []byte("a")})
	f.Validate()

	f.Reset()

	assert.Nil(t, f.Value("title"))
	assert.Nil(t, f.File())
	assert.Empty(t, f.Errors())
	assert.Equal(t, StateDraft, f.State())
}

func TestForm_ChangesComparesTimesByInstant(t *testing.T) {
	start := time.Date(2024, 10, 5, 17, 0, 0, 0, time.UTC)
	rec := schema.Record{ID: "e1", Fields: map[string]any{"title": "Fall Fest", "startDate": start}}
	f := newEditForm(schema.Event, rec)

	ist := time.FixedZone("IST", 5*3600+1800)
	require.NoError(t, f.SetField("startDate", start.In(ist)))
	assert.Empty(t, f.Changes())

	require.NoError(t, f.SetField("startDate", start.Add(time.Hour)))
	assert.Contains(t, f.Changes(), "startDate")
}

func TestErrors_Classification(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", &OpError{Code: CodeUpload, Op: "upload", Kind: "event", Err: errors.New("boom")})

	assert.ErrorIs(t, wrapped, ErrUpload)
	assert.NotErrorIs(t, wrapped, ErrPersist)
	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeUpload, code)
	assert.Equal(t, "event upload: upload failed: boom", errors.Unwrap(wrapped).Error())

	verr := &ValidationError{Kind: "slide", Fields: FieldErrors{"title": "Title is required", "imageUrl": "Image is required"}}
	assert.ErrorIs(t, verr, ErrValidation)
	code, _ = CodeOf(verr)
	assert.Equal(t, CodeValidation, code)
	assert.Equal(t, "slide: validation failed: imageUrl: Image is required; title: Title is required", verr.Error())

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestUploader_ResolveEmptyReference(t *testing.T) {
	up := NewUploader("event", mediatest.New(), nil, zerolog.Nop())

	_, err := up.ResolveViewURL(context.Background(), " ", time.Minute)

	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, media.ErrUnknownCID)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "persisted", StatePersisted.String())
	text, err := StateDeleting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "deleting", string(text))
	assert.Equal(t, "unknown", State(42).String())
}
