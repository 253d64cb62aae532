package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ParseQuery splits a raw query string into lower-cased keys. A '\&' inside
// a value is kept as a literal ampersand rather than a separator.
func ParseQuery(query string) (m url.Values, err error) {
	m = make(url.Values)
	for query != "" {
		pair := query
		query = ""
		for i := 0; i < len(pair); i++ {
			if pair[i] == '&' && (i == 0 || pair[i-1] != '\\') {
				pair, query = pair[:i], pair[i+1:]
				break
			}
		}
		if pair == "" {
			continue
		}

		key, value := pair, ""
		if i := strings.Index(pair, "="); i >= 0 {
			key, value = pair[:i], strings.Replace(pair[i+1:], "\\&", "&", -1)
		}
		key, err1 := url.QueryUnescape(key)
		if err1 == nil {
			value, err1 = url.QueryUnescape(value)
		}
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}

		key = strings.ToLower(key)
		m[key] = append(m[key], value)
	}
	return m, err
}

// FocalParams holds the parameters of a focal service request.
type FocalParams struct {
	Request    string
	Identifier string
	Input      string
	Band       int
	WindowSize int
	Statistic  string
	Boundary   string
	Format     string
}

var focalRequests = map[string]string{
	"getcapabilities": "GetCapabilities",
	"describeprocess": "DescribeProcess",
	"execute":         "Execute",
}

func firstParam(params url.Values, key string) string {
	if v, ok := params[key]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func intParam(params url.Values, key string) (int, error) {
	s := firstParam(params, key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrBadParam, key, s)
	}
	return v, nil
}

// CheckFocalParams extracts FocalParams from parsed query values. Preset
// values from the named process are filled in by the caller.
func CheckFocalParams(params url.Values) (FocalParams, error) {
	var fp FocalParams

	req := firstParam(params, "request")
	if req == "" {
		return fp, fmt.Errorf("%w: request parameter is missing", ErrBadParam)
	}
	name, ok := focalRequests[strings.ToLower(req)]
	if !ok {
		return fp, fmt.Errorf("%w: request %q is not one of GetCapabilities, DescribeProcess, Execute", ErrBadParam, req)
	}
	fp.Request = name

	fp.Identifier = firstParam(params, "identifier")
	fp.Input = firstParam(params, "input")
	fp.Statistic = firstParam(params, "statistic")
	fp.Boundary = firstParam(params, "boundary")
	fp.Format = strings.ToLower(firstParam(params, "format"))

	var err error
	if fp.Band, err = intParam(params, "band"); err != nil {
		return fp, err
	}
	if fp.Band < 0 {
		return fp, fmt.Errorf("%w: band must be positive, got %d", ErrBadParam, fp.Band)
	}
	if fp.WindowSize, err = intParam(params, "size"); err != nil {
		return fp, err
	}

	if fp.Request == "DescribeProcess" && fp.Identifier == "" {
		return fp, fmt.Errorf("%w: DescribeProcess requires an identifier", ErrBadParam)
	}
	if fp.Format != "" {
		if _, err := ContentType(fp.Format); err != nil {
			return fp, fmt.Errorf("%w: %v", ErrBadParam, err)
		}
	}
	return fp, nil
}

// ParseRemoteAddr returns the client address, preferring the first hop
// recorded by a proxy in X-Forwarded-For.
func ParseRemoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}
