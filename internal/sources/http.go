package sources

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxResponseSize = 32 << 20

// StatusError carries an unexpected HTTP status from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// secretParams are query parameters whose values are kept out of errors.
var secretParams = []string{"apikey"}

func redact(s string, query url.Values) string {
	for _, param := range secretParams {
		value := query.Get(param)

		if value == "" {
			continue
		}

		s = strings.ReplaceAll(s, url.QueryEscape(value), "REDACTED")
		s = strings.ReplaceAll(s, value, "REDACTED")
	}

	return s
}

// redactError drops the query string from request errors, which net/http
// reports with the full URL, and removes any secret value left in the text.
func redactError(err error, query url.Values) error {
	if urlErr, ok := err.(*url.Error); ok {
		stripped := urlErr.URL

		if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
			u.RawQuery = ""
			stripped = u.String()
		}

		err = &url.Error{Op: urlErr.Op, URL: stripped, Err: redactError(urlErr.Err, query)}
	}

	if msg := err.Error(); redact(msg, query) != msg {
		return errors.New(redact(msg, query))
	}

	return err
}

func notFoundStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusGone || code == http.StatusUnprocessableEntity
}

// getJSON issues a GET and decodes a 200 response into out. Statuses listed
// in notFoundCodes (plus 404, 410 and 422) become NotFound, anything else
// Unavailable.
func getJSON(ctx context.Context, client *http.Client, source, endpoint string, query url.Values, out interface{}, notFoundCodes ...int) error {
	u, err := url.Parse(endpoint)

	if err != nil {
		return unavailable(source, errors.Wrap(err, "invalid endpoint"))
	}

	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	if err != nil {
		return unavailable(source, redactError(err, query))
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)

	if err != nil {
		return unavailable(source, redactError(err, query))
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: redact(string(body), query)}

		if notFoundStatus(resp.StatusCode) {
			return notFound(source, statusErr)
		}

		for _, code := range notFoundCodes {
			if code == resp.StatusCode {
				return notFound(source, statusErr)
			}
		}

		return unavailable(source, statusErr)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return unavailable(source, errors.Wrap(err, "could not decode response"))
	}

	return nil
}
