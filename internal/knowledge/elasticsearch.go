package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
)

const defaultIndex = "plant-knowledge"

// ElasticsearchProvider reads care sheets from an index of PlantInfo
// documents. Misses and failures fall back to another provider, usually the
// static one, so callers always get the best answer available.
type ElasticsearchProvider struct {
	es       *elasticsearch.Client
	index    string
	timeout  time.Duration
	fallback Provider
	log      logger.Logger
}

func NewElasticsearchProvider(es *elasticsearch.Client, cfg config.KnowledgeConfig, fallback Provider, log logger.Logger) *ElasticsearchProvider {
	index := cfg.Index
	if index == "" {
		index = defaultIndex
	}
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ElasticsearchProvider{
		es:       es,
		index:    index,
		timeout:  timeout,
		fallback: fallback,
		log:      log.WithFields(map[string]interface{}{"component": "knowledge", "index": index}),
	}
}

func (p *ElasticsearchProvider) GetPlantInfo(ctx context.Context, plantType string) PlantInfo {
	info, err := p.search(ctx, plantType)
	if err != nil {
		std := errors.NewKnowledgeLookupFailedError(plantType, err)
		p.log.Warn("Knowledge lookup failed, using fallback", map[string]interface{}{
			"plantType": plantType,
			"errorCode": std.Code,
			"error":     err.Error(),
		})
		return p.fromFallback(ctx, plantType)
	}
	if !info.Found() {
		return p.fromFallback(ctx, plantType)
	}
	return info
}

func (p *ElasticsearchProvider) fromFallback(ctx context.Context, plantType string) PlantInfo {
	if p.fallback == nil {
		return PlantInfo{}
	}
	return p.fallback.GetPlantInfo(ctx, plantType)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source PlantInfo `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (p *ElasticsearchProvider) search(ctx context.Context, plantType string) (PlantInfo, error) {
	name := strings.TrimSpace(plantType)
	if name == "" {
		return PlantInfo{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"name.keyword": name}},
					map[string]interface{}{"term": map[string]interface{}{"common_names.keyword": name}},
				},
				"minimum_should_match": 1,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return PlantInfo{}, err
	}

	req := esapi.SearchRequest{
		Index: []string{p.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, p.es)
	if err != nil {
		return PlantInfo{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return PlantInfo{}, fmt.Errorf("search: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return PlantInfo{}, fmt.Errorf("decode search response: %w", err)
	}
	if len(parsed.Hits.Hits) == 0 {
		return PlantInfo{}, nil
	}
	return parsed.Hits.Hits[0].Source, nil
}

// Sync indexes plants, replacing documents with the same name.
func (p *ElasticsearchProvider) Sync(ctx context.Context, plants []PlantInfo) error {
	for _, plant := range plants {
		body, err := json.Marshal(plant)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      p.index,
			DocumentID: strings.ToLower(strings.ReplaceAll(plant.Name, " ", "-")),
			Body:       bytes.NewReader(body),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, p.es)
		if err != nil {
			return errors.NewKnowledgeLookupFailedError(plant.Name, err)
		}
		res.Body.Close()
		if res.IsError() {
			return errors.NewKnowledgeLookupFailedError(plant.Name, fmt.Errorf("index: %s", res.Status()))
		}
	}
	p.log.Info("Knowledge index synced", map[string]interface{}{"plants": len(plants)})
	return nil
}
