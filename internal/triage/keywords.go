package triage

import "regexp"

// Keyword lists are Indonesian-first: the groups being protected are
// Indonesian academic chats, and campaigns against them are written in
// Indonesian with the occasional English loanword.

// urgencyKeywords pressure the reader to act immediately.
var urgencyKeywords = []string{
	"segera", "mendesak", "urgent", "buruan", "cepat",
	"sekarang juga", "hari ini", "batas waktu", "deadline",
	"jangan sampai", "terlewat", "kesempatan terakhir",
	"limited", "terbatas", "akan berakhir", "expired",
	"hanya hari ini", "promo", "gratis", "hadiah",
	"verifikasi", "diblokir", "ditangguhkan",
}

// phishingKeywords are direct phishing indicators: account threats, money,
// credentials, and too-good-to-be-true offers.
var phishingKeywords = []string{
	"verifikasi akun", "konfirmasi data", "update data",
	"akun diblokir", "akun ditangguhkan", "akun bermasalah",
	"transfer", "kirim uang", "bayar", "pembayaran",
	"hadiah", "menang", "pemenang", "undian", "lottery",
	"klik link", "klik disini", "klik sekarang",
	"login sekarang", "masuk sekarang",
	"password", "kata sandi", "pin", "otp",
	"data pribadi", "nomor rekening", "kartu kredit",
	"beasiswa penuh", "lowongan kerja", "gaji tinggi",
	"investasi", "keuntungan besar", "cuan", "pinjaman", "modal", "utang",
	"amanah", "dana", "keuangan", "cair",
}

// authorityPatterns catch impersonation of campus officials.
var authorityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`dari\s+(pihak\s+)?(kampus|universitas|uir|rektorat|dekanat)`),
	regexp.MustCompile(`(admin|operator)\s+(resmi|official)`),
	regexp.MustCompile(`pengumuman\s+(penting|resmi)`),
	regexp.MustCompile(`surat\s+edaran`),
}

// excessivePunctPattern matches runs of exclamation/question marks.
var excessivePunctPattern = regexp.MustCompile(`[!?]{3,}`)

// emojiPattern covers the common emoji unicode blocks.
var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}` + // emoticons
	`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
	`\x{1F680}-\x{1F6FF}` + // transport & map symbols
	`\x{1F1E0}-\x{1F1FF}` + // flags
	`\x{2702}-\x{27B0}` +
	`\x{24C2}-\x{1F251}]`)
