package bible

import "strings"

// Testament values for the canon table.
const (
	OldTestament = "old"
	NewTestament = "new"
)

// CanonBook is one entry of the fixed 66-book canon.
type CanonBook struct {
	Number    int
	Name      string
	ShortName string
	Testament string
}

// Canon is the 66-book Protestant canon in canonical order. Book names match
// the forms the detection prompt instructs the model to use ("Psalm", not
// "Psalms"; "1 Corinthians", not "First Corinthians").
var Canon = []CanonBook{
	{1, "Genesis", "Gen", OldTestament},
	{2, "Exodus", "Exo", OldTestament},
	{3, "Leviticus", "Lev", OldTestament},
	{4, "Numbers", "Num", OldTestament},
	{5, "Deuteronomy", "Deu", OldTestament},
	{6, "Joshua", "Jos", OldTestament},
	{7, "Judges", "Jdg", OldTestament},
	{8, "Ruth", "Rut", OldTestament},
	{9, "1 Samuel", "1Sa", OldTestament},
	{10, "2 Samuel", "2Sa", OldTestament},
	{11, "1 Kings", "1Ki", OldTestament},
	{12, "2 Kings", "2Ki", OldTestament},
	{13, "1 Chronicles", "1Ch", OldTestament},
	{14, "2 Chronicles", "2Ch", OldTestament},
	{15, "Ezra", "Ezr", OldTestament},
	{16, "Nehemiah", "Neh", OldTestament},
	{17, "Esther", "Est", OldTestament},
	{18, "Job", "Job", OldTestament},
	{19, "Psalm", "Psa", OldTestament},
	{20, "Proverbs", "Pro", OldTestament},
	{21, "Ecclesiastes", "Ecc", OldTestament},
	{22, "Song of Solomon", "Sng", OldTestament},
	{23, "Isaiah", "Isa", OldTestament},
	{24, "Jeremiah", "Jer", OldTestament},
	{25, "Lamentations", "Lam", OldTestament},
	{26, "Ezekiel", "Ezk", OldTestament},
	{27, "Daniel", "Dan", OldTestament},
	{28, "Hosea", "Hos", OldTestament},
	{29, "Joel", "Joe", OldTestament},
	{30, "Amos", "Amo", OldTestament},
	{31, "Obadiah", "Oba", OldTestament},
	{32, "Jonah", "Jon", OldTestament},
	{33, "Micah", "Mic", OldTestament},
	{34, "Nahum", "Nah", OldTestament},
	{35, "Habakkuk", "Hab", OldTestament},
	{36, "Zephaniah", "Zep", OldTestament},
	{37, "Haggai", "Hag", OldTestament},
	{38, "Zechariah", "Zec", OldTestament},
	{39, "Malachi", "Mal", OldTestament},
	{40, "Matthew", "Mat", NewTestament},
	{41, "Mark", "Mrk", NewTestament},
	{42, "Luke", "Luk", NewTestament},
	{43, "John", "Jhn", NewTestament},
	{44, "Acts", "Act", NewTestament},
	{45, "Romans", "Rom", NewTestament},
	{46, "1 Corinthians", "1Co", NewTestament},
	{47, "2 Corinthians", "2Co", NewTestament},
	{48, "Galatians", "Gal", NewTestament},
	{49, "Ephesians", "Eph", NewTestament},
	{50, "Philippians", "Php", NewTestament},
	{51, "Colossians", "Col", NewTestament},
	{52, "1 Thessalonians", "1Th", NewTestament},
	{53, "2 Thessalonians", "2Th", NewTestament},
	{54, "1 Timothy", "1Ti", NewTestament},
	{55, "2 Timothy", "2Ti", NewTestament},
	{56, "Titus", "Tit", NewTestament},
	{57, "Philemon", "Phm", NewTestament},
	{58, "Hebrews", "Heb", NewTestament},
	{59, "James", "Jas", NewTestament},
	{60, "1 Peter", "1Pe", NewTestament},
	{61, "2 Peter", "2Pe", NewTestament},
	{62, "1 John", "1Jn", NewTestament},
	{63, "2 John", "2Jn", NewTestament},
	{64, "3 John", "3Jn", NewTestament},
	{65, "Jude", "Jud", NewTestament},
	{66, "Revelation", "Rev", NewTestament},
}

// BookByName looks up a canon entry by its full name, case-insensitively.
func BookByName(name string) (CanonBook, bool) {
	name = strings.TrimSpace(name)
	for _, b := range Canon {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	// Common model slip: "Psalms" for "Psalm".
	if strings.EqualFold(name, "Psalms") {
		return BookByName("Psalm")
	}
	return CanonBook{}, false
}

// BookByNumber looks up a canon entry by its 1-66 number.
func BookByNumber(n int) (CanonBook, bool) {
	for _, b := range Canon {
		if b.Number == n {
			return b, true
		}
	}
	return CanonBook{}, false
}
