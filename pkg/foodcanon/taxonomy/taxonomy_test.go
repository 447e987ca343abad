package taxonomy

import (
	"reflect"
	"testing"
)

func TestInfer(t *testing.T) {
	tax := Default()
	tests := []struct {
		tokens []string
		want   string
	}{
		{[]string{"whole", "milk"}, "Dairy and Egg Products"},
		{[]string{"tomatoes"}, "Vegetables and Vegetable Products"},
		{[]string{"olive", "oil"}, "Fats and Oils"},
		{[]string{"chicken", "breast"}, "Poultry Products"},
		{[]string{"xanthan"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := tax.Infer(tt.tokens); got != tt.want {
			t.Errorf("Infer(%v) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestInferTieBreaksByName(t *testing.T) {
	tax := New()
	tax.AddCategory("b-group", []string{"lemon"})
	tax.AddCategory("a-group", []string{"juice"})
	for i := 0; i < 20; i++ {
		if got := tax.Infer([]string{"lemon", "juice"}); got != "a-group" {
			t.Fatalf("Infer = %q, want a-group", got)
		}
	}
}

func TestAssignCategories(t *testing.T) {
	tax := New()
	tax.AddCategory("fruit", []string{"Lemons"})
	tax.AddCategory("beverage", []string{"juice"})
	tax.AddCategory("grain", []string{"rice"})

	got := tax.AssignCategories([]string{"lemon", "juice"})
	want := []string{"beverage", "fruit"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AssignCategories = %v, want %v", got, want)
	}
	if got := tax.Categories(); len(got) != 3 || got[0] != "beverage" {
		t.Errorf("Categories = %v", got)
	}
}

func TestAffinity(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Dairy and Egg Products", "dairy and egg products", true},
		{"Spices and Herbs", "Dairy and Egg Products", false},
		{"", "", false},
		{"Beverages", "", false},
	}
	for _, tt := range tests {
		if got := Affinity(tt.a, tt.b); got != tt.want {
			t.Errorf("Affinity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
