package sources

import (
	"testing"

	"github.com/hazyhaar/releve/internal/extract"
)

const amazonSearchHTML = `<!DOCTYPE html>
<html><body>
<div class="s-main-slot">
  <div data-component-type="s-search-result" data-asin="B0A1">
    <h2 class="a-size-mini"><a class="a-link-normal" href="/dp/B0A1?ref=sr_1_1"><span>Samsung Galaxy S23 5G (Green, 128GB)</span></a></h2>
  </div>
  <div data-component-type="s-search-result" data-asin="B0A2">
    <h2 class="a-size-mini"><a class="a-link-normal" href="/dp/B0A2"><span>Back Cover for Samsung Galaxy S23</span></a></h2>
  </div>
  <div data-component-type="s-search-result" data-asin="B0A3">
    <h2 class="a-size-mini"><a class="a-link-normal" href="/dp/B0A3"><span>Samsung Galaxy S23 Ultra 5G (Black, 256GB)</span></a></h2>
  </div>
</div>
</body></html>`

const amazonDetailHTML = `<!DOCTYPE html>
<html><body>
<div id="wayfinding-breadcrumbs_feature_div">
  <ul><li><a href="/e">Electronics</a></li><li><a href="/m">Mobiles &amp; Accessories</a></li><li><a href="/s">Smartphones</a></li></ul>
</div>
<span id="productTitle"> Samsung Galaxy S23 5G (Cream, 128GB Storage) </span>
<div id="corePriceDisplay_desktop_feature_div">
  <span class="a-price aok-align-center"><span class="a-price-whole">44,999</span></span>
  <span class="a-price a-text-price"><span class="a-offscreen">&#8377;74,999</span></span>
  <span data-a-strike="true"><span class="a-offscreen">&#8377;79,999</span></span>
</div>
</body></html>`

func TestAmazonSearchURLs(t *testing.T) {
	got := Amazon{}.SearchURLs("Galaxy S23")
	want := "https://www.amazon.in/s?k=Galaxy+S23+mobile+phone"
	if len(got) != 1 || got[0] != want {
		t.Fatalf("SearchURLs = %v, want [%s]", got, want)
	}
}

func TestAmazonCandidates(t *testing.T) {
	doc, err := extract.Parse(amazonSearchHTML)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	got := Amazon{}.Candidates(doc, "https://www.amazon.in/s?k=galaxy+s23")
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 (accessory dropped): %v", len(got), got)
	}
	if got[0].Title != "Samsung Galaxy S23 5G (Green, 128GB)" {
		t.Errorf("first title = %q", got[0].Title)
	}
	if got[0].URL != "https://www.amazon.in/dp/B0A1?ref=sr_1_1" {
		t.Errorf("first url = %q", got[0].URL)
	}
	if got[1].URL != "https://www.amazon.in/dp/B0A3" {
		t.Errorf("second url = %q", got[1].URL)
	}
}

func TestAmazonCandidatesFallback(t *testing.T) {
	// No result cards at all: bare product links are taken instead,
	// review anchors excluded.
	const page = `<html><body>
<a href="/dp/B0F1">Samsung Galaxy S23 5G</a>
<a href="/dp/B0F2#customerReviews">1,234 ratings</a>
<a href="/gp/help">Help</a>
</body></html>`
	doc, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	got := Amazon{}.Candidates(doc, "https://www.amazon.in/s?k=galaxy")
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %v", len(got), got)
	}
	if got[0].URL != "https://www.amazon.in/dp/B0F1" {
		t.Errorf("url = %q", got[0].URL)
	}
}

func TestAmazonExtract(t *testing.T) {
	doc, err := extract.Parse(amazonDetailHTML)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	obs := Amazon{}.Extract(doc, "https://www.amazon.in/dp/B0A1", "Galaxy S23")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}
	if obs[0].Price != 44999 {
		t.Errorf("price = %v, want 44999", obs[0].Price)
	}
	if obs[0].Reference != 79999 {
		t.Errorf("reference = %v, want 79999 (largest strikethrough)", obs[0].Reference)
	}
	if obs[0].Source != "https://www.amazon.in/dp/B0A1" {
		t.Errorf("source = %q", obs[0].Source)
	}
}

func TestAmazonExtractRejections(t *testing.T) {
	tests := []struct {
		name  string
		page  string
		query string
	}{
		{
			name:  "accessory title",
			page:  `<html><body><span id="productTitle">Galaxy S23 Silicone Back Cover</span></body></html>`,
			query: "Galaxy S23",
		},
		{
			name:  "different model",
			page:  `<html><body><span id="productTitle">Samsung Galaxy S23 Ultra 5G</span></body></html>`,
			query: "Pixel 8 Pro",
		},
		{
			name: "laptop page without phone mention",
			page: `<html><body><h1>ASUS VivoBook 15 Laptop</h1>
<p>Thin and light laptop with 15.6-inch FHD display, Intel Core i5, 16GB RAM, 512GB SSD.</p></body></html>`,
			query: "VivoBook 15",
		},
		{
			name:  "no title at all",
			page:  `<html><body><div>loading…</div></body></html>`,
			query: "Galaxy S23",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := extract.Parse(tt.page)
			if err != nil {
				t.Fatalf("parse fixture: %v", err)
			}
			if obs := (Amazon{}).Extract(doc, "https://www.amazon.in/dp/X", tt.query); obs != nil {
				t.Fatalf("got %v, want nil", obs)
			}
		})
	}
}

func TestAmazonExtractNoPrices(t *testing.T) {
	// A verified phone page without price elements still yields one
	// zero-valued observation: reached, nothing usable.
	const page = `<html><body>
<div id="wayfinding-breadcrumbs_feature_div"><a href="/m">Mobiles</a></div>
<span id="productTitle">Samsung Galaxy S23 5G</span>
<div>Currently unavailable.</div>
</body></html>`
	doc, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	obs := Amazon{}.Extract(doc, "https://www.amazon.in/dp/X", "Galaxy S23")
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}
	if obs[0].Price != 0 || obs[0].Reference != 0 {
		t.Errorf("got price %v reference %v, want zeros", obs[0].Price, obs[0].Reference)
	}
}

func TestAmazonExtractTitleFromH1(t *testing.T) {
	const page = `<html><body>
<h1>Samsung Galaxy S23 5G</h1>
<div id="wayfinding-breadcrumbs_feature_div"><a href="/m">Smartphones</a></div>
<span class="a-price"><span class="a-price-whole">39,999</span></span>
</body></html>`
	doc, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	obs := Amazon{}.Extract(doc, "https://www.amazon.in/dp/X", "Galaxy S23")
	if len(obs) != 1 || obs[0].Price != 39999 {
		t.Fatalf("got %v, want one observation at 39999", obs)
	}
}

func TestAmazonExtractImplausibleFirstPrice(t *testing.T) {
	// The first a-price-whole hit is an EMI instalment below the band;
	// the offscreen selector must still recover the real price.
	const page = `<html><body>
<div id="wayfinding-breadcrumbs_feature_div"><a href="/m">Mobiles</a></div>
<span id="productTitle">Samsung Galaxy S23 5G</span>
<span class="a-price-whole">2,167</span>
<span class="a-price"><span class="a-offscreen">&#8377;44,999</span></span>
</body></html>`
	doc, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	obs := Amazon{}.Extract(doc, "https://www.amazon.in/dp/X", "Galaxy S23")
	if len(obs) != 1 || obs[0].Price != 44999 {
		t.Fatalf("got %v, want one observation at 44999", obs)
	}
}

func TestAmazonVariants(t *testing.T) {
	const page = `<html><body>
<div id="twister">
  <ul><li id="color_name_0"><a href="/dp/B0SELF?th=1">Cream</a></li>
      <li id="color_name_1"><a href="/dp/B0V1?th=1">Green</a></li>
      <li id="color_name_2"><a href="/dp/B0V2?th=1">Black</a></li></ul>
  <ul><li id="size_name_0"><a href="/dp/B0V1?psc=1">128GB</a></li>
      <li id="size_name_1"><a href="/dp/B0V3#customerReviews">256GB</a></li>
      <li id="size_name_2"><a href="/images/dp/B0V4">preview</a></li></ul>
</div>
</body></html>`
	doc, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	got := Amazon{}.Variants(doc, "https://www.amazon.in/dp/B0SELF")
	want := []string{
		"https://www.amazon.in/dp/B0V1?th=1",
		"https://www.amazon.in/dp/B0V2?th=1",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variant[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAmazonIsPhonePageBreadcrumbWins(t *testing.T) {
	// A phone breadcrumb accepts even when the body mentions laptops.
	const page = `<html><body>
<div id="wayfinding-breadcrumbs_feature_div"><a href="/m">Smartphones</a></div>
<p>Better multitasking than most laptops.</p>
</body></html>`
	doc, err := extract.Parse(page)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	if !amazonIsPhonePage(doc) {
		t.Fatal("page with phone breadcrumb rejected")
	}
}
