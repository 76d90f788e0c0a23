package classifier

const classificationPrompt = `Based on this complaint conversation, extract and classify the information:

%s

Known structured fields so far:
%s

Provide a JSON response with:
1. department: one of [Maintenance, IT, HR, Admin, Security, Facilities]
   - Maintenance: plumbing, electrical, building repairs
   - IT: computers, software, network issues
   - HR: employee relations, workplace issues
   - Admin: general administrative matters
   - Security: safety concerns, access issues
   - Facilities: cleaning, amenities, parking
2. summary: brief summary of the complaint (2-3 sentences)
3. location: where the issue occurred, or "Not specified"
4. datetime: when it occurred, or "Not specified"
5. severity: one of [Low, Medium, High, Critical]
6. details: key details about the complaint

Return ONLY valid JSON, no additional text.`
