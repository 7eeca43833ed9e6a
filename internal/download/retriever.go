package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/otcheredev/wado-download-engine/internal/models"
	"github.com/otcheredev/wado-download-engine/internal/transport"
	"github.com/otcheredev/wado-download-engine/internal/wado"
	wadomultipart "github.com/otcheredev/wado-download-engine/pkg/multipart"
)

// defaultTransferSyntax is the explicit-VR little-endian UID every
// WADO origin is required to support; a job falls back to requesting
// it once after an UnsupportedTsuid response.
const defaultTransferSyntax = "1.2.840.10008.1.2.1"

// Retriever fetches one SOP instance's DICOM bytes from a WADO origin,
// hiding the WADO-URI/WADO-RS wire difference from the job loop.
type Retriever interface {
	Fetch(ctx context.Context, endpoint wado.WadoEndpoint, series wado.SeriesRef, instance wado.SopInstanceRef, transferSyntax string) (io.ReadCloser, error)

	// FetchSeriesMetadata discovers a series' instance list from a
	// WADO-RS metadata document. WADO-URI-only endpoints do not
	// support this and return wado.ErrUnsupportedOperation; callers
	// targeting those endpoints must already know the instance list.
	FetchSeriesMetadata(ctx context.Context, endpoint wado.WadoEndpoint, studyUID, seriesUID string) (models.SeriesMetadataResponse, error)
}

// NewRetriever returns a Retriever over t that picks WADO-URI or
// WADO-RS on each Fetch call from the endpoint passed to it.
func NewRetriever(t *transport.Transport, cfg transport.Config) Retriever {
	return &httpRetriever{transport: t, cfg: cfg}
}

type httpRetriever struct {
	transport *transport.Transport
	cfg       transport.Config
}

func (r *httpRetriever) Fetch(ctx context.Context, endpoint wado.WadoEndpoint, series wado.SeriesRef, instance wado.SopInstanceRef, transferSyntax string) (io.ReadCloser, error) {
	if instance.DirectURL != "" {
		return r.fetchRaw(ctx, instance.DirectURL)
	}
	if endpoint.WadoRS {
		return r.fetchWadoRS(ctx, endpoint, series, instance)
	}
	return r.fetchWadoURI(ctx, endpoint, series, instance, transferSyntax)
}

func (r *httpRetriever) fetchRaw(ctx context.Context, u string) (io.ReadCloser, error) {
	resp, err := r.transport.Do(ctx, u, r.cfg)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (r *httpRetriever) fetchWadoURI(ctx context.Context, endpoint wado.WadoEndpoint, series wado.SeriesRef, instance wado.SopInstanceRef, transferSyntax string) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("requestType", "WADO")
	if !endpoint.SOPOnly {
		q.Set("studyUID", series.StudyInstanceUID)
		q.Set("seriesUID", series.SeriesInstanceUID)
	}
	q.Set("objectUID", instance.SOPInstanceUID)
	q.Set("contentType", "application/dicom")
	if transferSyntax != "" {
		q.Set("transferSyntax", transferSyntax)
	}
	if instance.Frame > 0 {
		q.Set("frameNumber", strconv.Itoa(instance.Frame))
	}
	full := endpoint.BaseURL + "?" + q.Encode() + endpoint.AdditionalQuery
	resp, err := r.transport.Do(ctx, full, r.cfg)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (r *httpRetriever) fetchWadoRS(ctx context.Context, endpoint wado.WadoEndpoint, series wado.SeriesRef, instance wado.SopInstanceRef) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/studies/%s/series/%s/instances/%s",
		endpoint.BaseURL, series.StudyInstanceUID, series.SeriesInstanceUID, instance.SOPInstanceUID)
	if instance.Frame > 0 {
		u = fmt.Sprintf("%s/frames/%d", u, instance.Frame)
	}

	cfg := r.cfg
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["Accept"] = `multipart/related; type="application/dicom"`
	cfg.Headers = headers

	resp, err := r.transport.Do(ctx, u, cfg)
	if err != nil {
		return nil, err
	}

	boundary, err := wadomultipart.BoundaryFromContentType(resp.ContentType)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	mr := wadomultipart.New(resp.Body, boundary)
	mr.SkipFirstBoundary()
	ok, err := mr.ReadBoundary()
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if !ok {
		resp.Body.Close()
		return nil, wado.ErrMalformedMultipart
	}

	return &multipartInstanceBody{part: mr.NewPartInputStream(), underlying: resp.Body}, nil
}

// multipartInstanceBody adapts a single multipart part's stream to
// io.ReadCloser, closing the underlying HTTP body once done.
type multipartInstanceBody struct {
	part       io.Reader
	underlying io.ReadCloser
}

func (b *multipartInstanceBody) Read(p []byte) (int, error) { return b.part.Read(p) }
func (b *multipartInstanceBody) Close() error               { return b.underlying.Close() }

// FetchSeriesMetadata retrieves and parses a WADO-RS series metadata
// document, the step that discovers what instances a series has
// before a LoadSeriesTask can be planned. WADO-URI endpoints have no
// equivalent call; callers must already know the instance list for
// those (typically supplied by the caller's own object model).
func (r *httpRetriever) FetchSeriesMetadata(ctx context.Context, endpoint wado.WadoEndpoint, studyUID, seriesUID string) (models.SeriesMetadataResponse, error) {
	if !endpoint.WadoRS {
		return nil, wado.ErrUnsupportedOperation
	}

	u := fmt.Sprintf("%s/studies/%s/series/%s/metadata", endpoint.BaseURL, studyUID, seriesUID)

	cfg := r.cfg
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["Accept"] = "application/dicom+json"
	cfg.Headers = headers

	resp, err := r.transport.Do(ctx, u, cfg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meta models.SeriesMetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, wado.ErrTruncatedDicom
	}
	return meta, nil
}
