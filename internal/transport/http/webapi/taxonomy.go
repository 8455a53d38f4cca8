package webapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartagri-server-go/internal/domain/taxonomy"
)

// TaxonomyService serves read-only taxonomy lookups.
type TaxonomyService struct {
	taxonomy *taxonomy.Service
}

// NewTaxonomyService creates the handler set.
func NewTaxonomyService(svc *taxonomy.Service) *TaxonomyService {
	return &TaxonomyService{taxonomy: svc}
}

// Register adds the taxonomy routes to the API group.
func (s *TaxonomyService) Register(apiGroup *gin.RouterGroup) {
	group := apiGroup.Group("/taxonomy")
	group.GET("/search", s.handleSearch)
	group.GET("/:id", s.handleGet)
}

// handleSearch matches the query against Chinese names and model labels.
func (s *TaxonomyService) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" || len(q) > 100 {
		respondError(c, http.StatusBadRequest, "query parameter q must be 1-100 characters", nil)
		return
	}

	var results []*taxonomy.Entry
	if entry, ok := s.taxonomy.ByName(q); ok {
		results = append(results, entry)
	}
	if entry, ok := s.taxonomy.ByModelLabel(q); ok {
		duplicate := len(results) > 0 && results[0].ID == entry.ID
		if !duplicate {
			results = append(results, entry)
		}
	}

	if len(results) == 0 {
		respondError(c, http.StatusNotFound, "taxonomy entry not found for query: "+q, nil)
		return
	}
	respondSuccess(c, http.StatusOK, results, "")
}

func (s *TaxonomyService) handleGet(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 || id > 1000 {
		respondError(c, http.StatusBadRequest, "id must be an integer in [0, 1000]", nil)
		return
	}

	entry, ok := s.taxonomy.ByID(id)
	if !ok {
		respondError(c, http.StatusNotFound, "taxonomy entry not found", nil)
		return
	}
	respondSuccess(c, http.StatusOK, entry, "")
}
