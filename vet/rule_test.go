package vet_test

import (
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/bluemonday"
	"github.com/fwojciec/leadscout/goquery"
	"github.com/fwojciec/leadscout/vet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func content(html string) *vet.Content {
	text := bluemonday.NewTextExtractor().Text(html)
	return &vet.Content{Domain: "shop.example", HTML: html, Text: text, Hash: leadscout.HashContent(text)}
}

func newRuleVetter() *vet.RuleVetter {
	return &vet.RuleVetter{
		Keywords: vet.Keywords("goalkeeper gloves"),
		Detector: goquery.NewSignalDetector(),
	}
}

func TestRuleVetter_Evaluate(t *testing.T) {
	t.Parallel()

	t.Run("accepts relevant shops", func(t *testing.T) {
		t.Parallel()

		v := newRuleVetter().Evaluate(content(shopHTML))
		assert.Equal(t, leadscout.DecisionAccept, v.Decision)
		assert.Equal(t, []string{"platform:shopify", "cart", "price"}, v.Markers)
		assert.Greater(t, v.Relevance, 0.9)
		assert.Contains(t, v.Rationale, "platform:shopify")
	})

	t.Run("rejects pages without commerce vocabulary", func(t *testing.T) {
		t.Parallel()

		v := newRuleVetter().Evaluate(content(poetryHTML))
		assert.Equal(t, leadscout.DecisionReject, v.Decision)
		assert.Equal(t, "no commerce vocabulary", v.Rationale)
	})

	t.Run("rejects irrelevant pages without markers", func(t *testing.T) {
		t.Parallel()

		v := newRuleVetter().Evaluate(content(`<p>Our law firm takes orders for consultations.</p>`))
		assert.Equal(t, leadscout.DecisionReject, v.Decision)
		assert.Empty(t, v.Markers)
	})

	t.Run("shops outside the industry are unclear", func(t *testing.T) {
		t.Parallel()

		v := newRuleVetter().Evaluate(content(gardenHTML))
		assert.Equal(t, leadscout.DecisionUnclear, v.Decision)
		assert.Equal(t, []string{"price"}, v.Markers)
	})

	t.Run("thresholds move the accept boundary", func(t *testing.T) {
		t.Parallel()

		r := newRuleVetter()
		r.Thresholds = vet.Thresholds{AcceptRelevance: 0.99, MinRelevance: 0.1}
		assert.Equal(t, leadscout.DecisionUnclear, r.Evaluate(content(shopHTML)).Decision)
	})
}

func TestRelevance(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.38, vet.Relevance("gloves gloves", []string{"gloves", "goalkeeper"}), 1e-9)
	assert.InDelta(t, 1.0, vet.Relevance(
		"gloves goalkeeper gloves goalkeeper gloves goalkeeper gloves goalkeeper gloves goalkeeper",
		[]string{"gloves", "goalkeeper"}), 1e-9)
	assert.Equal(t, 0.0, vet.Relevance("nothing here", []string{"gloves"}))
	assert.Equal(t, 1.0, vet.Relevance("anything", nil))
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"goalkeeper gloves", "goalkeeper", "gloves", "gk"}, vet.Keywords("Goalkeeper Gloves", "GK", "gloves"))
	assert.Equal(t, []string{"gear"}, vet.Keywords("gear"))
}

func TestThresholds(t *testing.T) {
	t.Parallel()

	t.Run("merge fills zero fields", func(t *testing.T) {
		t.Parallel()

		got := vet.Thresholds{AcceptRelevance: 0.5}.Merge(vet.DefaultThresholds())
		assert.Equal(t, vet.Thresholds{AcceptRelevance: 0.5, MinRelevance: vet.DefaultMinRelevance}, got)
	})

	t.Run("validate", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, vet.DefaultThresholds().Validate())
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(vet.Thresholds{AcceptRelevance: 1.5}.Validate()))
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(vet.Thresholds{AcceptRelevance: 0.2, MinRelevance: 0.3}.Validate()))
	})
}

func TestStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from     leadscout.VetState
		stage    leadscout.VetStage
		decision leadscout.Decision
		want     leadscout.VetState
		code     string
	}{
		{leadscout.VetUnvetted, leadscout.StageRule, leadscout.DecisionAccept, leadscout.VetAccepted, ""},
		{leadscout.VetUnvetted, leadscout.StageRule, leadscout.DecisionReject, leadscout.VetRejected, ""},
		{leadscout.VetUnvetted, leadscout.StageRule, leadscout.DecisionUnclear, leadscout.VetUnclear, ""},
		{leadscout.VetRuleChecked, leadscout.StageRule, leadscout.DecisionAccept, leadscout.VetAccepted, ""},
		{leadscout.VetUnclear, leadscout.StageModel, leadscout.DecisionAccept, leadscout.VetAccepted, ""},
		{leadscout.VetUnclear, leadscout.StageModel, leadscout.DecisionReject, leadscout.VetRejected, ""},
		{leadscout.VetModelChecked, leadscout.StageModel, leadscout.DecisionReject, leadscout.VetRejected, ""},
		{leadscout.VetUnclear, leadscout.StageModel, leadscout.DecisionUnclear, "", leadscout.ECONFLICT},
		{leadscout.VetUnvetted, leadscout.StageModel, leadscout.DecisionAccept, "", leadscout.ECONFLICT},
		{leadscout.VetUnclear, leadscout.StageRule, leadscout.DecisionAccept, "", leadscout.ECONFLICT},
		{leadscout.VetAccepted, leadscout.StageRule, leadscout.DecisionReject, "", leadscout.ECONFLICT},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.stage)+"/"+string(tt.decision), func(t *testing.T) {
			t.Parallel()

			got, err := vet.Step(tt.from, tt.stage, tt.decision)
			if tt.code != "" {
				assert.Equal(t, tt.code, leadscout.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
