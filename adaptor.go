package http2

import (
	"bytes"
	"strconv"

	"github.com/valyala/fasthttp"
)

// fasthttpRequestHeaders folds one decoded HPACK field into req, translating
// HTTP/2 pseudo-headers (:method, :path, :scheme, :authority) into their
// fasthttp.Request equivalents and passing everything else through as a
// regular header.
func fasthttpRequestHeaders(hf *HeaderField, req *fasthttp.Request) {
	k, v := hf.KeyBytes(), hf.ValueBytes()
	if !hf.IsPseudo() &&
		!(bytes.Equal(k, StringUserAgent) ||
			bytes.Equal(k, StringContentType)) {
		req.Header.AddBytesKV(k, v)
		return
	}

	if hf.IsPseudo() {
		if bytes.Equal(k, StringPath) {
			req.URI().SetRequestURIBytes(v)
			return
		}

		k = k[1:]
	}

	switch k[0] {
	case 'm': // method
		req.Header.SetMethodBytes(v)
	case 's': // scheme
		req.URI().SetSchemeBytes(v)
	case 'a': // authority
		req.URI().SetHostBytes(v)
		req.Header.AddBytesV("Host", v)
	case 'u': // user-agent
		req.Header.SetUserAgentBytes(v)
	case 'c': // content-type
		req.Header.SetContentTypeBytes(v)
	}
}

// responseHeaderFields builds the ordered pseudo-header-first field list for
// res, ready to hand to a StreamHandle.SendHeaders. The caller owns the
// returned fields and must ReleaseHeaderField each one once sent.
func responseHeaderFields(res *fasthttp.Response) []*HeaderField {
	fields := make([]*HeaderField, 0, 8)

	status := AcquireHeaderField()
	status.SetKeyBytes(StringStatus)
	status.SetValue(strconv.Itoa(res.Header.StatusCode()))
	fields = append(fields, status)

	length := AcquireHeaderField()
	length.SetKeyBytes(StringContentLength)
	length.SetValue(strconv.Itoa(len(res.Body())))
	fields = append(fields, length)

	res.Header.VisitAll(func(k, v []byte) {
		hf := AcquireHeaderField()
		hf.SetBytes(ToLower(append([]byte(nil), k...)), v)
		fields = append(fields, hf)
	})

	return fields
}

// releaseHeaderFields returns every field in fields to the pool.
func releaseHeaderFields(fields []*HeaderField) {
	for _, hf := range fields {
		ReleaseHeaderField(hf)
	}
}

// requestHeaderFields builds the ordered pseudo-header-first field list for
// req, ready to hand to a StreamHandle.SendHeaders. The caller owns the
// returned fields and must releaseHeaderFields them once sent.
func requestHeaderFields(req *fasthttp.Request) []*HeaderField {
	fields := make([]*HeaderField, 0, 8)

	method := AcquireHeaderField()
	method.SetKeyBytes(StringMethod)
	method.SetValueBytes(req.Header.Method())
	fields = append(fields, method)

	scheme := AcquireHeaderField()
	scheme.SetKeyBytes(StringScheme)
	scheme.SetValueBytes(req.URI().Scheme())
	fields = append(fields, scheme)

	authority := AcquireHeaderField()
	authority.SetKeyBytes(StringAuthority)
	authority.SetValueBytes(req.URI().Host())
	fields = append(fields, authority)

	path := AcquireHeaderField()
	path.SetKeyBytes(StringPath)
	path.SetValueBytes(req.URI().RequestURI())
	fields = append(fields, path)

	if body := req.Body(); len(body) != 0 {
		length := AcquireHeaderField()
		length.SetKeyBytes(StringContentLength)
		length.SetValue(strconv.Itoa(len(body)))
		fields = append(fields, length)
	}

	req.Header.VisitAll(func(k, v []byte) {
		if bytes.EqualFold(k, []byte("Host")) || bytes.EqualFold(k, []byte("Connection")) {
			return
		}
		hf := AcquireHeaderField()
		hf.SetBytes(ToLower(append([]byte(nil), k...)), v)
		fields = append(fields, hf)
	})

	return fields
}

// responseFromFields folds a decoded field list received on a client stream
// into res, translating the :status pseudo-header back into
// fasthttp.Response's status code and passing the rest through as regular
// headers.
func responseFromFields(fields []*HeaderField, res *fasthttp.Response) {
	for _, hf := range fields {
		k, v := hf.KeyBytes(), hf.ValueBytes()
		if bytes.Equal(k, StringStatus) {
			code, err := strconv.Atoi(string(v))
			if err == nil {
				res.Header.SetStatusCode(code)
			}
			continue
		}
		if hf.IsPseudo() {
			continue
		}
		res.Header.AddBytesKV(k, v)
	}
}
