package fsname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	var testCases = []struct {
		description string
		key         string
		expect      string
	}{
		{description: "plain", key: "ulma_1234-ab", expect: "ulma_1234-ab"},
		{description: "slash", key: "a/b", expect: "a~2Fb"},
		{description: "traversal", key: "../etc/passwd", expect: "~2E~2E~2Fetc~2Fpasswd"},
		{description: "colon", key: "team:a", expect: "team~3Aa"},
		{description: "escape byte", key: "a~2Fb", expect: "a~7E2Fb"},
		{description: "upn", key: "jane.doe@corp", expect: "jane~2Edoe~40corp"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Encode(testCase.key), testCase.description)
	}
}

func TestEncode_Distinct(t *testing.T) {
	keys := []string{"team:a", "team_a", "a/b", "a_b", "a~2Fb", "a\\b", "..", "__", "", "~"}
	seen := map[string]string{}
	for _, key := range keys {
		name := Encode(key)
		previous, ok := seen[name]
		assert.False(t, ok, "%q and %q share %q", key, previous, name)
		seen[name] = key
	}
}
