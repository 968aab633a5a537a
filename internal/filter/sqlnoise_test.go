package filter

import (
	"testing"

	logx "synclog/pkg/logx"
)

func TestSQLNoise(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		drop bool
	}{
		{"SELECT * FROM foo", true},
		{`{"id": 1}`, false},
		{"pkeys: [1,2,3]", false},
		{"----------", true},
		{"-----", true},
		{"----", false},
		{"[1, 2, 3]", false},
		{"  from users u", true},
		{"WHERE id = 1", true},
		{"left join orders o on o.uid = u.id", true},
		{"LEFT OUTER JOIN orders", true},
		{"inner join x", true},
		{"JOIN x", true},
		{"GROUP BY 1", true},
		{"order by id desc", true},
		{"LIMIT 10", true},
		{"OFFSET 20", true},
		{"CAST(x AS int)", true},
		{"json_extract(doc, '$.a')", true},
		{"JSON_AGG(x)", true},
		{"AND a = 1", true},
		{"or b = 2", true},
		{"\x1b[1;34mSELECT\x1b[0m 1", true},
		{"\x1b[32mpkeys: [4]\x1b[0m", false},
		{"Orders synced: 5", false},
		{"selected 3 tables", false},
		{"android build", false},
		{"synced 120 rows in 3s", false},
		{"ON anon_1.id = users.id", true},
		{"AS anon_2", true},
		{"LATERAL (SELECT 1) AS x", true},
		{"LEFT", true},
		{"right outer", true},
		{"INNER", true},
		{"OUTER", true},
		{"online since 3s", false},
		{"assets copied", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSQLNoise(tt.line); got != tt.drop {
			t.Fatalf("IsSQLNoise(%q) = %v, want %v", tt.line, got, tt.drop)
		}
	}
}

func TestSQLNoiseFilterCountsDrops(t *testing.T) {
	t.Parallel()
	f := NewSQLNoise()
	if f.Allow(logx.Record{Message: "SELECT 1"}) {
		t.Fatal("query fragment allowed")
	}
	if !f.Allow(logx.Record{Message: "done"}) {
		t.Fatal("plain line dropped")
	}
	if f.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", f.Dropped())
	}
}

func TestStripANSI(t *testing.T) {
	t.Parallel()
	in := "\x1b[31mred\x1b[0m and \x1b[1mbold\x1b[22m"
	if got := StripANSI(in); got != "red and bold" {
		t.Fatalf("StripANSI = %q", got)
	}
	if got := StripANSI("plain"); got != "plain" {
		t.Fatalf("StripANSI(plain) = %q", got)
	}
}
