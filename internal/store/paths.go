package store

import "strings"

// Data categories fanned out per household. Each (household, category) pair
// gets at most one live watch.
const (
	CategoryMeta         = "meta"
	CategoryStatus       = "status"
	CategoryMembers      = "members"
	CategoryMedicines    = "medicines"
	CategoryMedicineLogs = "medicineLogs"
	CategoryVitals       = "vitals"
	CategoryReminders    = "reminders"
	CategoryContacts     = "contacts"
	CategoryAppointments = "appointments"
	CategoryGeofences    = "geofences"
	CategoryAlerts       = "alerts"
)

// FanOutCategories are the collections a caregiver subscribes to per
// household, in addition to status and members.
var FanOutCategories = []string{CategoryMedicines, CategoryMedicineLogs}

// HouseholdPath builds households/{id}/{category}
func HouseholdPath(householdID, category string) string {
	return "households/" + householdID + "/" + category
}

// HouseholdItemPath builds households/{id}/{category}/{itemID}
func HouseholdItemPath(householdID, category, itemID string) string {
	return "households/" + householdID + "/" + category + "/" + itemID
}

// MetaPath is the household validity marker, written once at creation
func MetaPath(householdID string) string { return HouseholdPath(householdID, CategoryMeta) }

// StatusPath is the senior-writes/caregiver-reads status snapshot
func StatusPath(householdID string) string { return HouseholdPath(householdID, CategoryStatus) }

// MembersPath is the membership collection
func MembersPath(householdID string) string { return HouseholdPath(householdID, CategoryMembers) }

// MemberPath is one membership record
func MemberPath(householdID, memberID string) string {
	return HouseholdItemPath(householdID, CategoryMembers, memberID)
}

// PhoneIndexPath maps a normalized phone number to its household code
func PhoneIndexPath(normalizedPhone string) string {
	return "phoneIndex/" + normalizedPhone
}

// CaregiverIndexPath lists the households linked to a caregiver phone
func CaregiverIndexPath(normalizedPhone string) string {
	return "caregiverIndex/" + normalizedPhone
}

// CaregiverLinkPath marks one caregiver-to-household link
func CaregiverLinkPath(normalizedPhone, householdID string) string {
	return "caregiverIndex/" + normalizedPhone + "/" + householdID
}

// ChildSegment returns the last path segment of child relative to prefix, or
// "" when child is not a descendant of prefix.
func ChildSegment(prefix, child string) string {
	if !strings.HasPrefix(child, prefix+"/") {
		return ""
	}
	rest := child[len(prefix)+1:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
