package forms

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicSpecs() []FieldSpec {
	return []FieldSpec{
		Text("name", Rules("required")),
		Text("nickname", Default("anon")),
		Bool("subscribed", Checked()),
		File("avatar"),
	}
}

func postFormRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNewBindsSubmittedFormData(t *testing.T) {
	req := postFormRequest(t, url.Values{
		"name":       {"alice"},
		"subscribed": {"on"},
	})

	form, err := New(req, basicSpecs())
	require.NoError(t, err)

	assert.True(t, form.IsSubmitted())
	assert.Equal(t, "alice", form.Value("name"))
	assert.True(t, form.Field("subscribed").Checked)

	// Absent text field falls back to its declared default.
	assert.Equal(t, "anon", form.Value("nickname"))
}

func TestNewCheckboxAbsentMeansUnchecked(t *testing.T) {
	// The default applies only when the form was not submitted; an
	// absent checkbox on a submitted form is unchecked.
	req := postFormRequest(t, url.Values{"name": {"alice"}})

	form, err := New(req, basicSpecs())
	require.NoError(t, err)
	assert.False(t, form.Field("subscribed").Checked)

	for _, falsy := range []string{"", "false", "0"} {
		req := postFormRequest(t, url.Values{"subscribed": {falsy}})
		form, err := New(req, basicSpecs())
		require.NoError(t, err)
		assert.False(t, form.Field("subscribed").Checked, "value %q", falsy)
	}
}

func TestNewUsesDefaultsForNonMutatingMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?name=ignored", nil)

	form, err := New(req, basicSpecs())
	require.NoError(t, err)

	assert.False(t, form.IsSubmitted())
	assert.Empty(t, form.Value("name"), "query data must not bind")
	assert.Equal(t, "anon", form.Value("nickname"))
	assert.True(t, form.Field("subscribed").Checked, "checkbox default applies without data")
}

func TestNewBindsMultiValuedFields(t *testing.T) {
	req := postFormRequest(t, url.Values{"tags": {"go", "http", "forms"}})

	form, err := New(req, []FieldSpec{Text("tags")})
	require.NoError(t, err)

	field := form.Field("tags")
	assert.Equal(t, "go", field.Value)
	assert.Equal(t, []string{"go", "http", "forms"}, field.Values)
}

func TestNewBindsJSONBody(t *testing.T) {
	body := `{"name":"alice","age":42,"ratio":0.5,"subscribed":true,"tags":["a","b"],"note":null}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	form, err := New(req, []FieldSpec{
		Text("name"),
		Text("age"),
		Text("ratio"),
		Bool("subscribed"),
		Text("tags"),
		Text("note", Default("unset")),
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", form.Value("name"))
	assert.Equal(t, "42", form.Value("age"))
	assert.Equal(t, "0.5", form.Value("ratio"))
	assert.True(t, form.Field("subscribed").Checked)
	assert.Equal(t, []string{"a", "b"}, form.Field("tags").Values)
	assert.Equal(t, "unset", form.Value("note"), "null is treated as absent")
}

func TestNewRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := New(req, []FieldSpec{Text("name")})
	assert.Error(t, err)
}

func TestNewBindsMultipartFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("avatar", "avatar.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake-png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("name", "alice"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	form, err := New(req, basicSpecs())
	require.NoError(t, err)

	assert.Equal(t, "alice", form.Value("name"))

	file := form.Field("avatar").File
	require.NotNil(t, file)
	assert.Equal(t, "avatar.png", file.Filename)
}

func TestNewWithDataBypassesRequestInference(t *testing.T) {
	form, err := NewWithData(url.Values{"name": {"alice"}}, basicSpecs())
	require.NoError(t, err)

	assert.True(t, form.IsSubmitted())
	assert.Equal(t, "alice", form.Value("name"))
}

func TestErrorsAggregatesPerField(t *testing.T) {
	form, err := NewWithData(url.Values{}, []FieldSpec{
		Text("a", Rules("required")),
		Text("b", Rules("required")),
		Text("c", Default("fine")),
	})
	require.NoError(t, err)

	ok, err := form.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	errs := form.Errors()
	assert.Equal(t, []string{"This field is required."}, errs["a"])
	assert.Equal(t, []string{"This field is required."}, errs["b"])
	assert.NotContains(t, errs, "c")
}
