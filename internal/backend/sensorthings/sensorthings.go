// Package sensorthings implements backend.Backend on top of an OGC SensorThings API
// service. Collections map to entity sets and items to entities; every operation is a
// short sequence of blocking HTTP calls made in order on one shared client.
package sensorthings

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/sensorthings/internal/backend"
	"github.com/tansive/sensorthings/internal/common/httpclient"
	"github.com/tansive/sensorthings/internal/common/logtrace"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// TypeName is the name the backend is registered under.
const TypeName = "SensorThings"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	backend.Register(TypeName, func(ctx context.Context, defs map[string]any) (backend.Backend, error) {
		b, err := New(ctx, defs)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}

// Backend talks to one SensorThings service. It is not safe for concurrent use.
type Backend struct {
	url    string
	client httpclient.HTTPClientInterface
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend from connection parameters; "url" is required and should
// point at the versioned service root, e.g. http://host:8080/FROST-Server/v1.1.
func New(ctx context.Context, defs map[string]any) (*Backend, error) {
	params, err := backend.DecodeConnectionParams(defs)
	if err != nil {
		return nil, err
	}
	cfg := httpclient.StaticConfig{
		ServerURL: params.URL,
		APIKey:    params.APIKey,
	}
	client := httpclient.NewClientWithOptions(cfg, httpclient.ClientOptions{
		Timeout:               params.Timeout,
		DisableCertValidation: params.InsecureSkipVerify,
	})
	return NewWithClient(params.URL, client), nil
}

// NewWithClient creates a backend for baseURL that sends requests through client.
func NewWithClient(baseURL string, client httpclient.HTTPClientInterface) *Backend {
	return &Backend{
		url:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: client,
	}
}

func (b *Backend) Type() string {
	return TypeName
}

func (b *Backend) String() string {
	return fmt.Sprintf("<SensorthingsBackend> (url=%s)", b.url)
}

// Endpoint returns the entity set URL for a collection. Only the last dot-separated
// segment of the collection ID is used: "iot.sta.Things" resolves to <url>/Things.
func (b *Backend) Endpoint(collectionID string) string {
	return b.url + "/" + strings.TrimLeft(entitySet(collectionID), "/")
}

// AddCollection is not supported; entity sets are fixed by the service.
func (b *Backend) AddCollection(ctx context.Context, collectionID string) error {
	return backend.ErrNotImplemented.Msg(fmt.Sprintf("%s backend cannot add collection %s", TypeName, collectionID))
}

// HasCollection always reports true. The service is not queried, so a missing entity
// set is only noticed by the operations that use it.
func (b *Backend) HasCollection(ctx context.Context, collectionID string) (bool, error) {
	return true, nil
}

// DeleteCollection deletes every entity in the collection's entity set, one DELETE
// per entity. It stops and returns false at the first DELETE that does not answer
// 200. When the listing is paged the set is listed again after each page until it
// comes back empty.
func (b *Backend) DeleteCollection(ctx context.Context, collectionID string) (bool, error) {
	ctx, logger := b.operation(ctx, "delete_collection", collectionID)
	index := b.Endpoint(collectionID)
	deleted := map[string]struct{}{}

	for {
		keys, more, err := b.listKeys(ctx, index)
		if err != nil {
			logger.Error().Err(err).Str("url", index).Msg("failed to list collection")
			return false, backend.ErrListCollection.MsgErr(fmt.Sprintf("unable to list %s", index), err)
		}
		for _, key := range keys {
			if _, ok := deleted[key]; ok {
				logger.Error().Str("id", key).Msg("deleted entity still listed")
				return false, nil
			}
			target := entityPath(index, key)
			resp, err := b.client.DeleteResource(ctx, target)
			if err != nil || resp.StatusCode != http.StatusOK {
				logFailure(logger, "failed to delete entity", target, resp, err)
				return false, nil
			}
			deleted[key] = struct{}{}
			logger.Debug().Str("id", key).Msg("deleted entity")
		}
		if !more || len(keys) == 0 {
			break
		}
	}

	logger.Info().Int("count", len(deleted)).Msg("collection emptied")
	return true, nil
}

// listKeys fetches one page of the entity set and returns the key literal of every
// entity on it and whether the service reported further pages.
func (b *Backend) listKeys(ctx context.Context, index string) ([]string, bool, error) {
	resp, err := b.client.ListResources(ctx, index, nil)
	if err != nil {
		return nil, false, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, false, fmt.Errorf("listing is not valid JSON")
	}
	values := gjson.GetBytes(resp.Body, "value")
	if !values.IsArray() {
		return nil, false, fmt.Errorf("listing has no value array")
	}

	var keys []string
	for _, entity := range values.Array() {
		key, ok := keyFromResult(entity.Get(pathID))
		if !ok {
			return nil, false, backend.ErrMissingID.Msg(fmt.Sprintf("entity without %s in listing", fieldID))
		}
		keys = append(keys, key)
	}
	more := gjson.GetBytes(resp.Body, pathNextLink).String() != ""
	return keys, more, nil
}

// UpsertCollectionItems creates (POST), updates (PATCH) or deletes (DELETE) each item
// in turn. An empty method means POST; any other method fails with
// backend.ErrInvalidArgument before a request is made. The first request that does not
// succeed ends the batch with false.
func (b *Backend) UpsertCollectionItems(ctx context.Context, collectionID string, items []backend.Item, method backend.Method) (bool, error) {
	m, err := backend.ParseMethod(string(method))
	if err != nil {
		return false, err
	}
	ctx, logger := b.operation(ctx, "upsert_collection_items", collectionID)
	logger = logger.With().Str("method", string(m)).Logger()
	index := b.Endpoint(collectionID)

	for i, item := range items {
		var (
			target string
			resp   *httpclient.Response
			err    error
		)
		if m == backend.MethodPost {
			target = index
			body, merr := json.Marshal(item)
			if merr != nil {
				logger.Error().Err(merr).Int("item", i).Msg("unable to encode item")
				return false, nil
			}
			resp, err = b.client.CreateResource(ctx, target, body)
		} else {
			key, ok := keyFromValue(item[fieldID])
			if !ok {
				logger.Error().Err(backend.ErrMissingID).Int("item", i).Msg("cannot address item")
				return false, nil
			}
			target = entityPath(index, key)
			if m == backend.MethodPatch {
				body, merr := patchBody(item)
				if merr != nil {
					logger.Error().Err(merr).Int("item", i).Msg("unable to encode item")
					return false, nil
				}
				resp, err = b.client.UpdateResource(ctx, target, body)
			} else {
				resp, err = b.client.DeleteResource(ctx, target)
			}
		}
		if err != nil || !resp.OK() {
			logFailure(logger.With().Int("item", i).Logger(), "item request failed", target, resp, err)
			return false, nil
		}
		logger.Debug().Int("item", i).Int("status", resp.StatusCode).Str("location", resp.Location).Msg("item applied")
	}
	return true, nil
}

// patchBody encodes item without the read-only annotations the service rejects in an
// update body.
func patchBody(item backend.Item) ([]byte, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	for _, p := range []string{pathID, pathSelfLink} {
		if body, err = sjson.DeleteBytes(body, p); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// DeleteCollectionItem deletes one entity. itemID is sent as a numeric key when it
// parses as an integer and as a quoted string key otherwise. Failures are logged and
// reported as false.
func (b *Backend) DeleteCollectionItem(ctx context.Context, collectionID string, itemID string) bool {
	ctx, logger := b.operation(ctx, "delete_collection_item", collectionID)
	logger.Debug().Str("id", itemID).Msg("deleting item")

	target := entityPath(b.Endpoint(collectionID), FormatItemID(itemID))
	resp, err := b.client.DeleteResource(ctx, target)
	if err != nil {
		logFailure(logger, "item deletion failed", target, resp, err)
		return false
	}
	return true
}

// operation tags ctx with a request ID if it has none and returns a logger carrying
// the fields shared by every line the operation logs.
func (b *Backend) operation(ctx context.Context, op, collectionID string) (context.Context, zerolog.Logger) {
	if logtrace.RequestIdFromContext(ctx) == "" {
		ctx = logtrace.WithRequestID(ctx, "")
	}
	logger := log.With().
		Str("backend", TypeName).
		Str("op", op).
		Str("collection", collectionID).
		Str("request_id", logtrace.RequestIdFromContext(ctx)).
		Logger()
	return ctx, logger
}

func logFailure(logger zerolog.Logger, msg, target string, resp *httpclient.Response, err error) {
	ev := logger.Error().Str("url", target)
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode).Bytes("body", resp.Body)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}
