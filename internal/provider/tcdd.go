package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/weberkan/raywatch/internal/model"
)

const (
	// DefaultBaseURL is the TCDD e-ticket site.
	DefaultBaseURL = "https://ebilet.tcddtasimacilik.gov.tr"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// defaultTimeout bounds one full page interaction, dominated by the
	// trip-search results render.
	defaultTimeout = 90 * time.Second
)

// TCDD scrapes ebilet.tcddtasimacilik.gov.tr with a headless browser.
// The site renders availability client-side, so every read goes through
// a real page session: fill stations, pick the date, search, then read
// the wagon buttons off the result list.
type TCDD struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Headless  bool
}

// NewTCDD returns a headless TCDD provider with defaults applied.
func NewTCDD(baseURL string) *TCDD {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &TCDD{
		BaseURL:   baseURL,
		UserAgent: defaultUserAgent,
		Timeout:   defaultTimeout,
		Headless:  true,
	}
}

// wagonRaw is the per-class result read straight off the page.
type wagonRaw struct {
	Present    bool   `json:"present"`
	Disabled   bool   `json:"disabled"`
	Price      string `json:"price"`
	Passengers int    `json:"passengers"`
}

// Snapshot performs one full availability read for the query.
func (t *TCDD) Snapshot(ctx context.Context, q Query) (*model.WagonSnapshot, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", t.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(t.userAgent()),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var raw map[string]wagonRaw
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(t.baseURL()),
		chromedp.Sleep(2*time.Second),
		t.fillStation("#fromTrainInput", q.From),
		t.fillStation("#toTrainInput", q.To),
		t.selectDate(q.Date),
		chromedp.Click("#searchSeferButton", chromedp.ByQuery),
		chromedp.WaitVisible(".price", chromedp.ByQuery),
		chromedp.Evaluate(readWagonsJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("provider: tcdd snapshot %s->%s %s: %w", q.From, q.To, q.Date, err)
	}

	snap := &model.WagonSnapshot{
		Wagons:    map[model.WagonType]model.WagonInfo{},
		Timestamp: time.Now(),
	}
	for name, w := range raw {
		if !w.Present {
			continue
		}
		wagon, err := model.ParseWagonType(name)
		if err != nil || wagon == model.WagonAll {
			continue
		}
		info := model.WagonInfo{Status: model.StatusAvailable, Passengers: q.Passengers}
		if w.Disabled || w.Price == "DOLU" {
			info.Status = model.StatusFull
		}
		if p := strings.TrimSpace(w.Price); p != "" && p != "DOLU" {
			info.Price = &p
		}
		snap.Wagons[wagon] = info
	}
	return snap, nil
}

// fillStation types a station name into a search input and clicks the
// matching dropdown entry, falling back to the first suggestion.
func (t *TCDD) fillStation(sel, name string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, name, chromedp.ByQuery),
		chromedp.Sleep(2 * time.Second),
		chromedp.Evaluate(fmt.Sprintf(pickStationJS, jsString(name)), nil),
		chromedp.Sleep(time.Second),
	}
}

// selectDate opens the date picker and clicks the day cell.
func (t *TCDD) selectDate(date string) chromedp.Tasks {
	day := ""
	if d, err := time.Parse("2006-01-02", date); err == nil {
		day = fmt.Sprintf("%d", d.Day())
	}
	return chromedp.Tasks{
		chromedp.Click(".reportrange-text", chromedp.ByQuery),
		chromedp.Sleep(2 * time.Second),
		chromedp.Evaluate(fmt.Sprintf(pickDayJS, jsString(day)), nil),
		chromedp.Sleep(time.Second),
	}
}

func (t *TCDD) baseURL() string {
	if t.BaseURL == "" {
		return DefaultBaseURL
	}
	return t.BaseURL
}

func (t *TCDD) userAgent() string {
	if t.UserAgent == "" {
		return defaultUserAgent
	}
	return t.UserAgent
}

// jsString quotes a Go string as a JS string literal.
func jsString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// pickStationJS clicks the dropdown entry whose text contains the wanted
// station. Comparison folds dotted/dotless I the way the site does.
const pickStationJS = `(() => {
	const norm = s => s.replaceAll('İ', 'i').replaceAll('I', 'ı').toLowerCase();
	const want = norm(%s);
	const items = Array.from(document.querySelectorAll('.dropdown-item.station'));
	const hit = items.find(it => norm(it.textContent.trim()).includes(want));
	if (hit) { hit.click(); return true; }
	if (items.length > 0) { items[0].click(); return true; }
	return false;
})()`

// pickDayJS clicks the day cell in the open daterangepicker, then the
// apply button if the picker shows one.
const pickDayJS = `(() => {
	const target = %s;
	const cells = Array.from(document.querySelectorAll('.calendar-table td:not(.off)'));
	const cell = cells.find(c => c.textContent.trim() === target);
	if (!cell) return false;
	cell.click();
	const apply = Array.from(document.querySelectorAll('button'))
		.find(b => b.textContent.trim() === 'Uygula');
	if (apply) apply.click();
	return true;
})()`

// readWagonsJS reads every wagon-class button on the results page and
// reports its disabled state, price text, and passenger hint.
const readWagonsJS = `(() => {
	const results = {
		'EKONOMİ': {present: false, disabled: false, price: '', passengers: 1},
		'BUSINESS': {present: false, disabled: false, price: '', passengers: 1},
		'YATAKLI': {present: false, disabled: false, price: '', passengers: 1},
	};
	document.querySelectorAll('button').forEach(btn => {
		const text = (btn.textContent || '').toUpperCase();
		let type = null;
		if (text.includes('EKONOMİ')) type = 'EKONOMİ';
		else if (text.includes('BUSINESS')) type = 'BUSINESS';
		else if (text.includes('YATAKLI')) type = 'YATAKLI';
		if (!type) return;
		const row = btn.closest('.col-md-12');
		const priceEl = row ? row.querySelector('.price') : null;
		const paxEl = row ? row.querySelector('[class*="passenger"]') : null;
		results[type] = {
			present: true,
			disabled: btn.classList.contains('disabled') || btn.hasAttribute('disabled'),
			price: priceEl ? priceEl.textContent.trim() : '',
			passengers: paxEl ? (parseInt(paxEl.textContent.trim()) || 1) : 1,
		};
	});
	return results;
})()`
