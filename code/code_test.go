package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleResponse = "Here is the fix:\n\n" +
	"```python\nimport numpy as np\nprint(np.mean(x))\n```\n\n" +
	"And a shell helper:\n\n" +
	"```bash\npip install numpy\n```\n"

// -------------------- ExtractBlocks Tests --------------------

func TestExtractBlocks(t *testing.T) {
	blocks := ExtractBlocks(sampleResponse)

	assert.Len(t, blocks, 2)
	assert.Equal(t, "python", blocks[0].Lang)
	assert.Equal(t, "import numpy as np\nprint(np.mean(x))", blocks[0].Source)
	assert.Equal(t, "bash", blocks[1].Lang)
	assert.Equal(t, "pip install numpy", blocks[1].Source)
}

func TestExtractBlocks_BareFence(t *testing.T) {
	blocks := ExtractBlocks("```\nx = 1\n```")

	assert.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].Lang)
	assert.Equal(t, "x = 1", blocks[0].Source)
}

func TestExtractBlocks_NoFences(t *testing.T) {
	assert.Empty(t, ExtractBlocks("just prose, no code at all"))
}

// -------------------- ExtractFirst Tests --------------------

func TestExtractFirst_MatchesLang(t *testing.T) {
	src, ok := ExtractFirst(sampleResponse, "bash")
	assert.True(t, ok)
	assert.Equal(t, "pip install numpy", src)
}

func TestExtractFirst_BareFenceMatchesAnyLang(t *testing.T) {
	src, ok := ExtractFirst("```\nx = 1\n```", "python")
	assert.True(t, ok)
	assert.Equal(t, "x = 1", src)
}

func TestExtractFirst_NotFound(t *testing.T) {
	_, ok := ExtractFirst(sampleResponse, "rust")
	assert.False(t, ok)
}

// -------------------- Extract Tests --------------------

func TestExtract_JoinsMatchingBlocks(t *testing.T) {
	text := "```python\na = 1\n```\nprose\n```python\nb = 2\n```"
	assert.Equal(t, "a = 1\n\nb = 2", Extract(text, "python"))
}

func TestExtract_FiltersOtherLangs(t *testing.T) {
	assert.Equal(t, "import numpy as np\nprint(np.mean(x))", Extract(sampleResponse, "python"))
}

func TestExtract_WholeTextWithoutFences(t *testing.T) {
	assert.Equal(t, "x = 1\ny = 2", Extract("  x = 1\ny = 2\n", "python"))
}

func TestExtract_InlineFencesAreNotCode(t *testing.T) {
	assert.Empty(t, Extract("wrap it in ``` fences ``` please", "python"))
}

// -------------------- TextBefore Tests --------------------

func TestTextBefore(t *testing.T) {
	assert.Equal(t, "Here is the fix:", TextBefore(sampleResponse))
}

func TestTextBefore_NoFence(t *testing.T) {
	assert.Equal(t, "only prose", TextBefore("  only prose\n"))
}
